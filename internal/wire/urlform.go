package wire

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// Form encodes and decodes k=v&k=v payloads. With Obfuscate set, values are
// additionally wrapped in base64 with the client's character substitutions
// ('='→'*', '+'→'.', '/'→'-'). Values are treated as raw bytes, so binary
// content survives the round trip.
type Form struct {
	Obfuscate bool
}

// Encode writes the fields in order, percent-encoding names and plain
// values. Obfuscated values need no percent-encoding since the substituted
// base64 alphabet is URL-safe.
func (f Form) Encode(fields Fields) string {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		if f.Obfuscate {
			b.WriteString(obfuscate(field.Value))
		} else {
			b.WriteString(url.QueryEscape(field.Value))
		}
	}
	return b.String()
}

// Decode parses the input into ordered fields. Empty names and segments
// without '=' are format errors; unknown percent-escapes surface as format
// errors with the segment offset.
func (f Form) Decode(s string) (Fields, error) {
	if s == "" {
		return nil, nil
	}
	var fields Fields
	offset := 0
	for _, seg := range strings.Split(s, "&") {
		eq := strings.IndexByte(seg, '=')
		if eq < 0 {
			return nil, &FormatError{Offset: offset, Msg: "expected '='"}
		}
		if eq == 0 {
			return nil, &FormatError{Offset: offset, Msg: "empty field name"}
		}
		name, err := url.QueryUnescape(seg[:eq])
		if err != nil {
			return nil, &FormatError{Offset: offset, Msg: "bad field name encoding"}
		}
		raw := seg[eq+1:]
		var value string
		if f.Obfuscate {
			value, err = deobfuscate(raw)
		} else {
			value, err = url.QueryUnescape(raw)
		}
		if err != nil {
			return nil, &FormatError{Offset: offset + eq + 1, Msg: "bad field value encoding"}
		}
		fields = append(fields, Field{Name: name, Value: value})
		offset += len(seg) + 1
	}
	return fields, nil
}

var obfuscator = strings.NewReplacer("=", "*", "+", ".", "/", "-")
var deobfuscator = strings.NewReplacer("*", "=", ".", "+", "-", "/")

func obfuscate(value string) string {
	return obfuscator.Replace(base64.StdEncoding.EncodeToString([]byte(value)))
}

func deobfuscate(raw string) (string, error) {
	// Some clients percent-encode the padding substitute.
	raw = strings.ReplaceAll(raw, "%2A", "*")
	decoded, err := base64.StdEncoding.DecodeString(deobfuscator.Replace(raw))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
