package pgodbc

import (
	"context"
	"fmt"

	"github.com/psqlodbc-go/pgodbc/hstore"
	"github.com/psqlodbc-go/pgodbc/oid"
)

// resolveHstoreOid implements the teacher's RegisterHstore the way this
// driver resolves any other dynamic (extension) type: hstore ships via
// CREATE EXTENSION rather than as a pg_type builtin, so its OID varies per
// database and can't be a package-level constant the way oid.T_bool is.
// Grounded on the teacher's own `SELECT 'hstore'::regtype::oid` probe,
// issued once at connect time instead of requiring the caller to call a
// separate registration function before every query.
func (c *Connection) resolveHstoreOid(ctx context.Context) error {
	res, err := c.exec(ctx, "SELECT 'hstore'::regtype::oid")
	if err != nil || res == nil || len(res.rows) == 0 {
		// The hstore extension isn't installed in this database; leave
		// hstore columns to decode as raw text rather than failing setup.
		return nil
	}
	n := parseOidText(res.rows[0][0])
	if n == 0 {
		return nil
	}
	c.codec.registerHstoreOid(oid.Oid(n))
	return nil
}

// decodeHstore/encodeHstore implement the Decoder/Encoder shape the rest
// of convert.go's Codec uses, built directly on the teacher's hstore
// subpackage decoder/encoder (its own database/sql-coupled Hstore
// wrapper type was dropped; see DESIGN.md).
func decodeHstore(raw []byte) (any, error) {
	return map[string]string(hstore.Decode(string(raw))), nil
}

func encodeHstore(v any) (string, error) {
	m, ok := v.(map[string]string)
	if !ok {
		return "", fmt.Errorf("pgodbc: cannot encode %T as hstore", v)
	}
	return quoteLiteral(hstore.Encode(m)), nil
}

// registerHstoreOid installs decode/encode for the hstore extension type
// once its connection-specific OID is known.
func (c *Codec) registerHstoreOid(o oid.Oid) {
	c.RegisterDecoder(o, decodeHstore)
	c.RegisterEncoder(o, encodeHstore)
}
