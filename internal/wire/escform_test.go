package wire

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEscFormEncode(t *testing.T) {
	got := EscForm{}.Encode(Fields{
		{Name: "key", Value: "value"},
		{Name: "emptyValue", Value: ""},
		{Name: "hello", Value: "world"},
		{Name: "numberTest", Value: "123"},
	})
	want := `\key\value\emptyValue\\hello\world\numberTest\123\final\`
	if string(got) != want {
		t.Errorf("Encode = %q, want %q", got, want)
	}
}

func TestEscFormDecode(t *testing.T) {
	fields, err := EscForm{}.Decode([]byte(`\lc\1\challenge\VCRKEDWLTY\id\1`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Fields{
		{Name: "lc", Value: "1"},
		{Name: "challenge", Value: "VCRKEDWLTY"},
		{Name: "id", Value: "1"},
	}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, fields[i], want[i])
		}
	}
}

func TestEscFormDecodeEmptyAndTrailingValues(t *testing.T) {
	fields, err := EscForm{}.Decode([]byte(`\status\\sesskey\12345`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fields.Get("status") != "" {
		t.Errorf("status = %q, want empty", fields.Get("status"))
	}
	if fields.Get("sesskey") != "12345" {
		t.Errorf("sesskey = %q", fields.Get("sesskey"))
	}

	// Trailing delimiter with nothing after it still yields an empty value.
	fields, err = EscForm{}.Decode([]byte(`\logout\`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := fields.Lookup("logout"); !ok {
		t.Error("expected logout field")
	}
}

func TestEscFormDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"empty input", "", 0},
		{"missing leading delimiter", `key\value`, 0},
		{"empty field name", `\\value`, 1},
		{"unterminated field name", `\key`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EscForm{}.Decode([]byte(tt.input))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %v", err)
			}
			if fe.Offset != tt.offset {
				t.Errorf("offset = %d, want %d", fe.Offset, tt.offset)
			}
		})
	}
}

func TestEscFormRoundTrip(t *testing.T) {
	in := Fields{
		{Name: "pi", Value: ""},
		{Name: "profileid", Value: "123456789"},
		{Name: "firstname", Value: "dream"},
		{Name: "sig", Value: "signature"},
		{Name: "id", Value: "4"},
	}
	out, err := EscForm{}.Decode(bytes.TrimSuffix(EscForm{}.Encode(in), []byte(Terminator)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d fields, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("field %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestScanMessages(t *testing.T) {
	stream := `\lc\1\challenge\ABCDEFGHIJ\id\1\final\\ka\\final\`
	sc := bufio.NewScanner(strings.NewReader(stream))
	sc.Split(ScanMessages)

	var frames []string
	for sc.Scan() {
		frames = append(frames, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{`\lc\1\challenge\ABCDEFGHIJ\id\1`, `\ka\`}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %q", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, frames[i], want[i])
		}
	}
}

func TestScanMessagesUnterminated(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader(`\login\\id\1`))
	sc.Split(ScanMessages)
	if sc.Scan() {
		t.Fatal("expected no frames")
	}
	if sc.Err() == nil {
		t.Error("expected error for unterminated message")
	}
}
