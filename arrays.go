package pgodbc

import (
	"fmt"
	"strings"

	"github.com/psqlodbc-go/pgodbc/arrays"
	"github.com/psqlodbc-go/pgodbc/oid"
)

// decodeArray and encodeArray give the Codec a converter for every array
// OID oid.IsArray recognizes, built on the teacher's arrays subpackage
// (a reflection-driven PG-array-literal decoder lifted from Go's own JSON
// decoder and adapted to Postgres's `{a,b,c}` text format) instead of a
// hand-rolled splitter — the corpus's own array handling already exists in
// this shape, so this driver drives it rather than re-deriving it.
// Decoding targets a generic []any rather than a fixed element type: the
// caller's CType/ColumnBinding layer (not this converter) decides what Go
// type each element should widen or narrow to.
func decodeArray(raw []byte) (any, error) {
	var out []any
	if err := arrays.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pgodbc: invalid array literal %q: %w", raw, err)
	}
	return out, nil
}

// encodeArray formats a Go slice back into `{...}` text, quoting any
// element whose text needs it (delimiter characters, braces, NULL-looking
// text, or already containing a `"`) the way Postgres's own array output
// function does.
func encodeArray(v any) (string, error) {
	items, ok := toAnySlice(v)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as array", v)
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(arrayElementText(item))
	}
	sb.WriteByte('}')
	return sb.String(), nil
}

func toAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []bool:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func arrayElementText(v any) string {
	if v == nil {
		return "NULL"
	}
	switch e := v.(type) {
	case string:
		return arrayQuote(e)
	case bool:
		if e {
			return "t"
		}
		return "f"
	case int, int32, int64:
		return fmt.Sprintf("%d", e)
	case float32, float64:
		return fmt.Sprintf("%v", e)
	default:
		return arrayQuote(fmt.Sprintf("%v", e))
	}
}

func arrayQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " ,{}\"\\") && strings.ToUpper(s) != "NULL" {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func init() {
	for _, o := range []oid.Oid{
		oid.T__bool, oid.T__bytea, oid.T__char, oid.T__name, oid.T__int8,
		oid.T__int2, oid.T__int4, oid.T__text, oid.T__oid, oid.T__float4,
		oid.T__float8, oid.T__varchar, oid.T__bpchar, oid.T__date,
		oid.T__time, oid.T__timestamp, oid.T__timestamptz, oid.T__numeric,
		oid.T__uuid,
	} {
		defaultDecoders[o] = decodeArray
		defaultEncoders[o] = encodeArray
	}
}
