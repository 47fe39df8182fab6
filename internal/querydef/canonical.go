package querydef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// marshalCanonical produces RFC 8785 style canonical JSON for hashing.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. Floats are rejected; callers encode them as strings
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(strconv.Itoa(val)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case bool:
		return []byte(strconv.FormatBool(val)), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			b, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	// Encoder appends a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// compareUTF16 orders strings by UTF-16 code units. Go's native string
// comparison uses UTF-8 bytes, which differs for supplementary characters.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
