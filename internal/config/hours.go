package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HourWindow maps a frequency label to a half-open [Start, End) hour range.
type HourWindow struct {
	Label string
	Start int
	End   int
}

// HourWindows preserves the JSON object order of the "hours" section.
//
// Window lookup is first-match-wins in configuration order, so a plain
// map[string][2]int would silently reorder overlapping ranges. The custom
// unmarshaller walks the object tokens instead.
type HourWindows []HourWindow

func (w *HourWindows) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("hours: expected object, got %v", tok)
	}

	out := make(HourWindows, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("hours: expected string key, got %v", keyTok)
		}
		var r [2]int
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("hours[%s]: expected [start, end): %w", label, err)
		}
		out = append(out, HourWindow{Label: label, Start: r[0], End: r[1]})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*w = out
	return nil
}

func (w HourWindows) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, win := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(win.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		fmt.Fprintf(&buf, ":[%d,%d]", win.Start, win.End)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
