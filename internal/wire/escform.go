package wire

import (
	"bytes"
	"strings"
)

// Terminator closes every framed message on the match connection.
const Terminator = `\final\`

// EscForm encodes and decodes the backslash-delimited message format:
// \name\value pairs closed by \final\. There is no escaping mechanism, so
// names and values must not contain the delimiter itself.
type EscForm struct{}

// Encode writes the fields followed by the terminator. Embedding the
// delimiter in a name or value, or using an empty name, is a programmer
// error and panics.
func (EscForm) Encode(fields Fields) []byte {
	var b bytes.Buffer
	for _, f := range fields {
		if f.Name == "" {
			panic("wire: empty field name")
		}
		if strings.ContainsRune(f.Name, '\\') || strings.ContainsRune(f.Value, '\\') {
			panic("wire: field contains delimiter: " + f.Name)
		}
		b.WriteByte('\\')
		b.WriteString(f.Name)
		b.WriteByte('\\')
		b.WriteString(f.Value)
	}
	b.WriteString(Terminator)
	return b.Bytes()
}

// Decode parses a single message body with the terminator already stripped,
// e.g. `\login\\authtoken\NDS...\id\1`. A trailing value may be closed by
// end of input instead of a delimiter.
func (EscForm) Decode(data []byte) (Fields, error) {
	if len(data) == 0 {
		return nil, &FormatError{Offset: 0, Msg: "empty message"}
	}
	if data[0] != '\\' {
		return nil, &FormatError{Offset: 0, Msg: `message must start with '\'`}
	}

	var fields Fields
	i := 1
	for i <= len(data) {
		if i == len(data) {
			return nil, &FormatError{Offset: i, Msg: "empty field name"}
		}
		j := bytes.IndexByte(data[i:], '\\')
		if j < 0 {
			return nil, &FormatError{Offset: i, Msg: "unterminated field name"}
		}
		if j == 0 {
			return nil, &FormatError{Offset: i, Msg: "empty field name"}
		}
		name := string(data[i : i+j])
		i += j + 1

		k := bytes.IndexByte(data[i:], '\\')
		if k < 0 {
			fields = append(fields, Field{Name: name, Value: string(data[i:])})
			return fields, nil
		}
		fields = append(fields, Field{Name: name, Value: string(data[i : i+k])})
		i += k + 1
	}
	return fields, nil
}

// ScanMessages is a bufio.SplitFunc yielding one terminator-delimited
// message per token, with the terminator stripped.
func ScanMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte(Terminator)); i >= 0 {
		return i + len(Terminator), data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return 0, nil, &FormatError{Offset: len(data), Msg: "unterminated message"}
	}
	return 0, nil, nil
}
