package querydef

import (
	"fmt"
	"strconv"
)

// Placeholder is one parameter token found in query text.
type Placeholder struct {
	Start, End int    // byte offsets of the token in the scanned text
	Token      string // e.g. ":name", "?", "?2"
	Name       string // named placeholders only
	Number     int    // explicit number of ?N, 0 for a bare ?
}

// Named reports whether the placeholder is :name.
func (p Placeholder) Named() bool { return p.Name != "" }

// ScanPlaceholders returns the :name, ?N and ? tokens of text in source
// order. Single- and double-quoted sections are skipped, as are :: casts.
func ScanPlaceholders(text string) []Placeholder {
	var out []Placeholder
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case ':':
			if i+1 < len(text) && text[i+1] == ':' {
				i++ // skip cast operator
				continue
			}
			if i > 0 && text[i-1] == ':' {
				continue
			}
			j := i + 1
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			if j > i+1 {
				out = append(out, Placeholder{Start: i, End: j, Token: text[i:j], Name: text[i+1 : j]})
				i = j - 1
			}
		case '?':
			j := i + 1
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			p := Placeholder{Start: i, End: j, Token: text[i:j]}
			if j > i+1 {
				p.Number, _ = strconv.Atoi(text[i+1 : j])
			}
			out = append(out, p)
			i = j - 1
		}
	}
	return out
}

// Substitutions converts placeholders to substitutions. Bare ? tokens take
// the index of their position among all positional tokens; ?N takes N-1.
func Substitutions(placeholders []Placeholder) ([]Substitution, error) {
	subs := make([]Substitution, 0, len(placeholders))
	positional := 0
	for _, p := range placeholders {
		if p.Named() {
			subs = append(subs, Named(p.Name, p.Token))
			continue
		}
		sub, err := PositionalToken(p.Token, positional)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
		positional++
	}
	return subs, nil
}

// PositionalToken converts "?" or "?N" to a positional substitution.
// A bare ? takes next as its index.
func PositionalToken(token string, next int) (Substitution, error) {
	if token == "?" {
		return Positional(next, token), nil
	}
	n, err := strconv.Atoi(token[1:])
	if err != nil {
		return Substitution{}, fmt.Errorf("invalid positional placeholder %q", token)
	}
	if n < 1 {
		return Substitution{}, fmt.Errorf("positional placeholder %q must be numbered from 1", token)
	}
	return Positional(n-1, token), nil
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
