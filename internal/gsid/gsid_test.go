package gsid

import "testing"

func TestStringify(t *testing.T) {
	tests := []struct {
		pid  uint32
		want string
	}{
		{45991782, "G5T5MB69TA"},
		{381955984, "S6MJNM63AC"},
		{507849071, "RMLLERWPSA"},
		{576782280, "J89BGT23UD"},
		{1442582313, "K3D29LTGSB"},
		{1640375006, "8YJN6SKKGF"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.pid); got != tt.want {
			t.Errorf("Stringify(%d) = %q, want %q", tt.pid, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	valid := []string{"VFWM2QAXNF", "44DAWDJKJ8", "J6F55UB2X9", "8FAB4Z3EN9", "HWLNS7BTNB"}
	for _, id := range valid {
		if !Valid(id) {
			t.Errorf("Valid(%q) = false, want true", id)
		}
	}

	invalid := []string{
		"0000000000", // chars outside the chartable
		"ABCDEFGHIJ",  // 'I' is not in the chartable
		"1OEKLRO493",  // chars outside the chartable
		"AAAAAAAAAA",  // checksum mismatch
		"ABC",         // too short
		"ABCDEFGHJKL", // too long
		"",
	}
	for _, id := range invalid {
		if Valid(id) {
			t.Errorf("Valid(%q) = true, want false", id)
		}
	}
}

func TestStringifyRoundTrip(t *testing.T) {
	for _, pid := range []uint32{0, 1, 12345, 847190349, 0x7FFFFFFF} {
		id := Stringify(pid)
		if len(id) != Length {
			t.Fatalf("Stringify(%d) length = %d", pid, len(id))
		}
		if !Valid(id) {
			t.Errorf("Valid(Stringify(%d)) = false", pid)
		}
	}
}
