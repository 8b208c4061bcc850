package schedule

import "errors"

// Window is a half-open [Start, End) hour-of-day range carrying a frequency
// label. Windows are evaluated in configuration order and the first match
// wins; overlapping ranges are not validated — first-match is the policy,
// not an accident.
type Window struct {
	Label string
	Start int
	End   int
}

// Frequency is the capture policy resolved for one label.
type Frequency struct {
	// Wait is the desired seconds between capture starts. Below 1 the
	// period counts as disabled.
	Wait float64
}

// Mode is a date-ranged policy bundle.
type Mode struct {
	ID string
	// Periods are inclusive [start, end] YYYYMMDD ranges.
	Periods [][2]int
	// Frequency maps labels to capture policy. A resolved label missing
	// here is a standby condition for the scheduler, not an error.
	Frequency map[string]Frequency
	Quality   string
}

// ErrNoModes is returned when mode resolution runs against an empty mode
// list. Callers assume a mode is always available, so this is a
// configuration error, not a standby condition.
var ErrNoModes = errors.New("schedule: no execution modes configured")

// ResolveFrequencyLabel returns the label of the first window containing
// hourOfDay. Hours outside 0-23 are accepted and simply match nothing:
// the timezone offset is applied without wrapping, and an out-of-domain
// hour degrades to "no policy" upstream.
func ResolveFrequencyLabel(windows []Window, hourOfDay int) (string, bool) {
	for _, w := range windows {
		if hourOfDay >= w.Start && hourOfDay < w.End {
			return w.Label, true
		}
	}
	return "", false
}

// ResolveExecutionMode returns the first mode with a period containing
// dateInt (YYYYMMDD). When no period matches, the last configured mode acts
// as the implicit default.
func ResolveExecutionMode(modes []Mode, dateInt int) (Mode, error) {
	if len(modes) == 0 {
		return Mode{}, ErrNoModes
	}
	for _, m := range modes {
		for _, p := range m.Periods {
			if dateInt >= p[0] && dateInt <= p[1] {
				return m, nil
			}
		}
	}
	return modes[len(modes)-1], nil
}

// DateInt converts year/month/day to the YYYYMMDD integer used by mode
// periods.
func DateInt(year int, month int, day int) int {
	return year*10000 + month*100 + day
}
