package pgodbc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// formatBoundParam renders a bound parameter's Go value as PostgreSQL SQL
// text, per spec.md §4.3 step 2. Temporal values are ISO strings, numeric
// values keep full precision via shopspring/decimal rather than
// strconv.FormatFloat (SPEC_FULL.md's addition to this component), binary
// values become bytea hex-escapes the way the teacher's array.go encodes
// BYTEA, and the result is already quoted/escaped — ready to splice
// straight into the rewritten SQL text.
func formatBoundParam(p *BoundParam) (string, error) {
	if p == nil || p.Value == nil {
		return "NULL", nil
	}

	switch v := p.Value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case string:
		return quoteLiteral(v), nil
	case []byte:
		return "E'\\\\x" + hex.EncodeToString(v) + "'", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return decimal.NewFromFloat32(v).String(), nil
	case float64:
		return decimal.NewFromFloat(v).String(), nil
	case decimal.Decimal:
		if exp := v.Exponent(); exp < 0 {
			// String() trims trailing fractional zeros; keep the scale.
			return v.StringFixed(-exp), nil
		}
		return v.String(), nil
	case time.Time:
		return quoteLiteral(formatTemporal(p.CType, v)), nil
	default:
		return "", newError("formatBoundParam", CodeRestrictedDataType, "unsupported bound parameter type %T", v)
	}
}

func formatTemporal(ct CType, t time.Time) string {
	switch ct {
	case CTypeDate:
		return t.Format("2006-01-02")
	case CTypeTime:
		return t.Format("15:04:05")
	default:
		return t.Format("2006-01-02 15:04:05.999999999Z07:00")
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// odbcFunctionMap is spec.md §4.3 step 3's fixed {fn ABC(...)} substitution
// table.
var odbcFunctionMap = map[string]string{
	"char":      "chr",
	"concat":    "textcat",
	"lcase":     "lower",
	"left":      "ltrunc",
	"locate":    "strpos",
	"length":    "char_length",
	"right":     "rtrunc",
	"substring": "substr",
	"ucase":     "upper",
	"ceiling":   "ceil",
	"log":       "ln",
	"log10":     "log",
	"power":     "pow",
	"rand":      "random",
	"truncate":  "trunc",
	"ifnull":    "coalesce",
	"user":      "odbc_user",
}

// mapODBCFunction rewrites a bare function name per the table above,
// passing unrecognized names through unchanged.
func mapODBCFunction(name string) string {
	if mapped, ok := odbcFunctionMap[strings.ToLower(name)]; ok {
		return mapped
	}
	return name
}

// parsePositiveInt is a small helper for decoding {d '...'}/{t '...'} escape
// bodies that carry a literal rather than a function call.
func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
