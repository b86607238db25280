// Package oid contains OID constants for the PostgreSQL wire-protocol
// system catalog types this driver knows how to convert.
//
// These values are not retrieved from the retrieval pack: the teacher
// (github.com/lib/pq) references an identically-shaped "oid" subpackage
// throughout decode.go/rows.go/codec.go (oid.T_int8, oid.T_bytea, ...) but
// that subpackage itself was not part of the example tree handed to this
// driver, so the table below is authored fresh, grounded on those call
// sites and on PostgreSQL's pg_type.dat OID assignments, which are stable
// across server versions.
package oid

// Oid is a Postgres Object Identifier.
type Oid uint32

// Well-known base type OIDs from pg_type.
const (
	T_bool        Oid = 16
	T_bytea       Oid = 17
	T_char        Oid = 18
	T_name        Oid = 19
	T_int8        Oid = 20
	T_int2        Oid = 21
	T_int2vector  Oid = 22
	T_int4        Oid = 23
	T_regproc     Oid = 24
	T_text        Oid = 25
	T_oid         Oid = 26
	T_tid         Oid = 27
	T_xid         Oid = 28
	T_cid         Oid = 29
	T_json        Oid = 114
	T_xml         Oid = 142
	T_point       Oid = 600
	T_float4      Oid = 700
	T_float8      Oid = 701
	T_unknown     Oid = 705
	T_circle      Oid = 718
	T_money       Oid = 790
	T_macaddr     Oid = 829
	T_inet        Oid = 869
	T_cidr        Oid = 650
	T_bpchar      Oid = 1042
	T_varchar     Oid = 1043
	T_date        Oid = 1082
	T_time        Oid = 1083
	T_timestamp   Oid = 1114
	T_timestamptz Oid = 1184
	T_interval    Oid = 1186
	T_timetz      Oid = 1266
	T_bit         Oid = 1560
	T_varbit      Oid = 1562
	T_numeric     Oid = 1700
	T_uuid        Oid = 2950
	T_jsonb       Oid = 3802

	// Range types.
	T_int4range Oid = 3904
	T_int8range Oid = 3926
	T_numrange  Oid = 3906
	T_daterange Oid = 3912

	// Array types ("_" prefix by Postgres convention, element OID + 1000ish band
	// but not derivable arithmetically — each is its own catalog row).
	T__bool        Oid = 1000
	T__bytea       Oid = 1001
	T__char        Oid = 1002
	T__name        Oid = 1003
	T__int8        Oid = 1016
	T__int2        Oid = 1005
	T__int4        Oid = 1007
	T__text        Oid = 1009
	T__oid         Oid = 1028
	T__float4      Oid = 1021
	T__float8      Oid = 1022
	T__varchar     Oid = 1015
	T__bpchar      Oid = 1014
	T__date        Oid = 1182
	T__time        Oid = 1183
	T__timestamp   Oid = 1115
	T__timestamptz Oid = 1185
	T__numeric     Oid = 1231
	T__uuid        Oid = 2951

	// The driver's own catalog/large-object/row-locator pseudo-types.
	T_ctid  Oid = 27 // same wire OID as tid
	T_hstore Oid = 0 // resolved per-connection at connect time; see catalog.go
	T_lo     Oid = 0 // resolved per-connection; PG_TYPE_LO lookup, see §4.5
)

// TypeName maps an OID to the catalog type name reported to SQLDescribeCol
// style consumers. Only the subset this driver actively converts is filled
// in; unknown OIDs report as "unknown".
var TypeName = map[Oid]string{
	T_bool:        "bool",
	T_bytea:       "bytea",
	T_char:        "char",
	T_name:        "name",
	T_int8:        "int8",
	T_int2:        "int2",
	T_int4:        "int4",
	T_text:        "text",
	T_oid:         "oid",
	T_json:        "json",
	T_jsonb:       "jsonb",
	T_xml:         "xml",
	T_float4:      "float4",
	T_float8:      "float8",
	T_money:       "money",
	T_macaddr:     "macaddr",
	T_inet:        "inet",
	T_cidr:        "cidr",
	T_bpchar:      "bpchar",
	T_varchar:     "varchar",
	T_date:        "date",
	T_time:        "time",
	T_timestamp:   "timestamp",
	T_timestamptz: "timestamptz",
	T_interval:    "interval",
	T_timetz:      "timetz",
	T_bit:         "bit",
	T_varbit:      "varbit",
	T_numeric:     "numeric",
	T_uuid:        "uuid",
	T_int4range:   "int4range",
	T_int8range:   "int8range",
	T_numrange:    "numrange",
	T_daterange:   "daterange",
}

// IsArray reports whether typ is one of the array OIDs this driver knows
// how to decode via the arrays subpackage.
func IsArray(typ Oid) bool {
	switch typ {
	case T__bool, T__bytea, T__char, T__name, T__int8, T__int2, T__int4,
		T__text, T__oid, T__float4, T__float8, T__varchar, T__bpchar,
		T__date, T__time, T__timestamp, T__timestamptz, T__numeric, T__uuid:
		return true
	}
	return false
}

// Name returns the catalog name for typ, or "unknown" if this driver has no
// converter for it (it is still passed through as raw text).
func Name(typ Oid) string {
	if n, ok := TypeName[typ]; ok {
		return n
	}
	return "unknown"
}
