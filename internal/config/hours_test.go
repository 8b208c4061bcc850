package config

import (
	"encoding/json"
	"testing"
)

func TestHourWindowsPreserveOrder(t *testing.T) {
	t.Parallel()
	// "night" before "day" on purpose; a map would sort these.
	raw := []byte(`{"night":[18,24],"evening":[16,20],"day":[6,18]}`)

	var w HourWindows
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := HourWindows{
		{Label: "night", Start: 18, End: 24},
		{Label: "evening", Start: 16, End: 20},
		{Label: "day", Start: 6, End: 18},
	}
	if len(w) != len(want) {
		t.Fatalf("len = %d, want %d", len(w), len(want))
	}
	for i := range want {
		if w[i] != want[i] {
			t.Fatalf("windows[%d] = %+v, want %+v", i, w[i], want[i])
		}
	}
}

func TestHourWindowsRoundTrip(t *testing.T) {
	t.Parallel()
	in := HourWindows{
		{Label: "b", Start: 12, End: 24},
		{Label: "a", Start: 0, End: 12},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"b":[12,24],"a":[0,12]}`; got != want {
		t.Fatalf("marshal = %s, want %s", got, want)
	}
	var out HourWindows
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestHourWindowsRejectBadShape(t *testing.T) {
	t.Parallel()
	tests := []string{
		`[1,2]`,
		`{"day":"6-18"}`,
		`{"day":[6,"x"]}`,
	}
	for _, raw := range tests {
		var w HourWindows
		if err := json.Unmarshal([]byte(raw), &w); err == nil {
			t.Fatalf("unmarshal(%s) should fail", raw)
		}
	}
}
