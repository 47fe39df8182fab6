package querydef

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DomainDefinition separates definition fingerprints from any other hash.
// The version suffix allows the encoding to change later.
const DomainDefinition = "dynquery/definition/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable content hash of the definition.
// Two definitions parsed from the same declaration always share a
// fingerprint; the declaring method is part of the hash.
func Fingerprint(d *Definition) (string, error) {
	canonical, err := marshalCanonical(d.canonicalForm())
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinition, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests.
func MustFingerprint(d *Definition) string {
	fp, err := Fingerprint(d)
	if err != nil {
		panic(err)
	}
	return fp
}

func (d *Definition) canonicalForm() map[string]any {
	s := d.spec

	joins := make([]any, len(s.Joins))
	for i, j := range s.Joins {
		joins[i] = map[string]any{"kind": string(j.Kind), "path": j.Path, "alias": j.Alias}
	}
	conds := make([]any, len(s.Conditions))
	for i, c := range s.Conditions {
		conds[i] = map[string]any{
			"attribute":   canonicalAttribute(c.Attribute),
			"operation":   string(c.Operation),
			"value":       canonicalSubstitution(c.Value),
			"value_case":  string(c.ValueCase),
			"wildcard":    string(c.Wildcard),
			"ignore_case": c.IgnoreCase,
			"connector":   string(c.Connector),
		}
	}
	subs := make([]any, len(s.Substitutions))
	for i, sub := range s.Substitutions {
		subs[i] = canonicalSubstitution(sub)
	}
	orders := make([]any, len(s.Orders))
	for i, o := range s.Orders {
		orders[i] = map[string]any{"property": o.Property, "descending": o.Descending}
	}
	cols := make([]any, len(s.Return.Columns))
	for i, c := range s.Return.Columns {
		cols[i] = canonicalAttribute(c)
	}

	var limit any
	if s.Limit != nil {
		limit = *s.Limit
	}

	return map[string]any{
		"method":        s.Method.String(),
		"raw":           s.Raw,
		"native":        s.Native,
		"action":        string(s.Action),
		"distinct":      s.Distinct,
		"return":        map[string]any{"kind": string(s.Return.Kind), "name": s.Return.Name, "columns": cols},
		"root_alias":    s.RootAlias,
		"joins":         joins,
		"conditions":    conds,
		"substitutions": subs,
		"orders":        orders,
		"limit":         limit,
	}
}

func canonicalAttribute(p AttributePath) map[string]any {
	return map[string]any{"name": p.Name, "case": string(p.Case)}
}

func canonicalSubstitution(s Substitution) map[string]any {
	out := map[string]any{"kind": string(s.Kind)}
	switch s.Kind {
	case SubstitutionNamed:
		out["key"] = s.Key
	case SubstitutionPositional:
		out["index"] = s.Index
	case SubstitutionLiteral:
		out["literal"] = canonicalLiteral(s.Literal)
	}
	return out
}

func canonicalLiteral(l Literal) any {
	switch v := l.(type) {
	case LitNull, nil:
		return nil
	case LitString:
		return string(v)
	case LitInt:
		return int64(v)
	case LitBool:
		return bool(v)
	case LitFloat:
		// Floats are hashed through their shortest decimal form.
		return "float:" + strconv.FormatFloat(float64(v), 'g', -1, 64)
	case LitList:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = canonicalLiteral(elem)
		}
		return out
	default:
		return nil
	}
}
