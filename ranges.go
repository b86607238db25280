package pgodbc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/psqlodbc-go/pgodbc/oid"
)

// Range is the Go-side value for any of the four range builtins
// (int4range/int8range/numrange/daterange). Lower/Upper are nil for an
// infinite bound; *Inclusive record which bracket character the wire text
// used. Grounded on the teacher's ranges subpackage, whose per-type Range
// structs (Int32Range, Float64Range, DateRange, ...) all parse the same
// `[lower,upper)`-shaped text; generalized here into one struct plus a
// per-OID element parser/formatter instead of four near-duplicate types,
// since the bracket/comma grammar itself never varies across them.
type Range struct {
	Lower, Upper                   any
	LowerInclusive, UpperInclusive bool
}

func (r Range) String() string {
	open, close := "(", ")"
	if r.LowerInclusive {
		open = "["
	}
	if r.UpperInclusive {
		close = "]"
	}
	lo, hi := "", ""
	if r.Lower != nil {
		lo = fmt.Sprintf("%v", r.Lower)
	}
	if r.Upper != nil {
		hi = fmt.Sprintf("%v", r.Upper)
	}
	return open + lo + "," + hi + close
}

// splitRangeText splits a `[lo,hi)`-shaped literal into its two bound
// characters and the text of each bound (empty string for an infinite
// bound), the same shape every range reader in the teacher's ranges
// subpackage hand-parses independently.
func splitRangeText(raw []byte) (lowerIncl bool, upperIncl bool, lo, hi string, err error) {
	s := string(raw)
	if s == "empty" {
		return false, false, "", "", fmt.Errorf("pgodbc: empty range")
	}
	if len(s) < 3 {
		return false, false, "", "", fmt.Errorf("pgodbc: malformed range literal %q", raw)
	}
	switch s[0] {
	case '[':
		lowerIncl = true
	case '(':
		lowerIncl = false
	default:
		return false, false, "", "", fmt.Errorf("pgodbc: malformed range literal %q", raw)
	}
	switch s[len(s)-1] {
	case ']':
		upperIncl = true
	case ')':
		upperIncl = false
	default:
		return false, false, "", "", fmt.Errorf("pgodbc: malformed range literal %q", raw)
	}
	body := s[1 : len(s)-1]
	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		return false, false, "", "", fmt.Errorf("pgodbc: malformed range literal %q", raw)
	}
	return lowerIncl, upperIncl, body[:comma], body[comma+1:], nil
}

func decodeRange(parseElem func(string) (any, error)) Decoder {
	return func(raw []byte) (any, error) {
		lowerIncl, upperIncl, loText, hiText, err := splitRangeText(raw)
		if err != nil {
			return nil, err
		}
		r := Range{LowerInclusive: lowerIncl, UpperInclusive: upperIncl}
		if loText != "" {
			if r.Lower, err = parseElem(loText); err != nil {
				return nil, fmt.Errorf("pgodbc: invalid range lower bound %q: %w", loText, err)
			}
		}
		if hiText != "" {
			if r.Upper, err = parseElem(hiText); err != nil {
				return nil, fmt.Errorf("pgodbc: invalid range upper bound %q: %w", hiText, err)
			}
		}
		return r, nil
	}
}

func encodeRange(v any) (string, error) {
	r, ok := v.(Range)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as range", v)
	}
	return quoteLiteral(r.String()), nil
}

func init() {
	intElem := func(s string) (any, error) { return strconv.ParseInt(s, 10, 64) }
	numElem := func(s string) (any, error) { return decimal.NewFromString(s) }
	dateElem := func(s string) (any, error) { return time.Parse("2006-01-02", s) }

	defaultDecoders[oid.T_int4range] = decodeRange(intElem)
	defaultDecoders[oid.T_int8range] = decodeRange(intElem)
	defaultDecoders[oid.T_numrange] = decodeRange(numElem)
	defaultDecoders[oid.T_daterange] = decodeRange(dateElem)

	for _, o := range []oid.Oid{oid.T_int4range, oid.T_int8range, oid.T_numrange, oid.T_daterange} {
		defaultEncoders[o] = encodeRange
	}
}
