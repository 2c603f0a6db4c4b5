// Package wire implements the two flat text formats spoken by the legacy
// client: the backslash-delimited form used on the match connection and the
// url-encoded form used by the HTTP services.
package wire

import "fmt"

// Field is a single name/value pair. Both codecs preserve field order.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered field list with lookup helpers.
type Fields []Field

// Get returns the value of the first field with the given name, or "".
func (f Fields) Get(name string) string {
	v, _ := f.Lookup(name)
	return v
}

// Lookup reports whether a field with the given name is present.
func (f Fields) Lookup(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// FormatError describes malformed wire input.
type FormatError struct {
	Offset int
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("wire: %s at offset %d", e.Msg, e.Offset)
}
