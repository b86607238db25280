package pgodbc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/psqlodbc-go/pgodbc/oid"
)

// Attribute is one pg_attribute row this driver cares about.
type Attribute struct {
	Name     string
	Type     oid.Oid
	Num      int16
	NotNull  bool
	HasDefault bool
}

// TableCatalog is the resolved catalog entry for one base table: its
// column list plus the best unique row identifier, spec.md §3's
// Table-info ("a best-unique-column name and its equality qualifier
// template"). HasOids/BestQual/Updatable follow spec.md §4.4's resolution
// algorithm: oid if the table has it, else a single-column unique
// non-null non-expression index, else not individually addressable.
type TableCatalog struct {
	OID        oid.Oid
	Schema     string
	Name       string
	Columns    []Attribute
	HasOids    bool
	BestQual   string // e.g. `"id" = %v`
	Updatable  bool
}

type cacheEntry struct {
	refs int
	tbl  *TableCatalog
}

// catalogCache is the per-connection table-info/field-info/column-info
// cache of spec.md §3/§5: refcounted per table (a statement that resolves
// a table takes a ref and releases it at destruction), and evicts
// least-recently-accessed entries when capacity is reached and no refs
// exist. Grounded on the "Shared-resource policy" paragraph of spec.md §5;
// this module has no teacher file to adapt for it (lib-pq has no catalog
// cache of its own, being a thin database/sql driver) so the LRU/refcount
// bookkeeping is original, sized to the small working set one connection's
// statements realistically touch.
type catalogCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry // key: "schema.table"
	lruOrder []string
	capacity int
}

func newCatalogCache() *catalogCache {
	return &catalogCache{entries: map[string]*cacheEntry{}, capacity: 64}
}

func catalogKey(schema, name string) string {
	if schema == "" {
		schema = "public"
	}
	return schema + "." + name
}

// evictAll drops every cache entry with no outstanding refs, called after
// DROP TABLE/ALTER TABLE/search_path-touching SET, per spec.md §4.1 step 3.
func (cc *catalogCache) evictAll() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for k, e := range cc.entries {
		if e.refs == 0 {
			delete(cc.entries, k)
		}
	}
	cc.compactLRU()
}

func (cc *catalogCache) compactLRU() {
	kept := cc.lruOrder[:0]
	for _, k := range cc.lruOrder {
		if _, ok := cc.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	cc.lruOrder = kept
}

func (cc *catalogCache) touch(key string) {
	for i, k := range cc.lruOrder {
		if k == key {
			cc.lruOrder = append(cc.lruOrder[:i], cc.lruOrder[i+1:]...)
			break
		}
	}
	cc.lruOrder = append(cc.lruOrder, key)
}

func (cc *catalogCache) evictOneUnrefed() {
	for i, k := range cc.lruOrder {
		if e, ok := cc.entries[k]; ok && e.refs == 0 {
			delete(cc.entries, k)
			cc.lruOrder = append(cc.lruOrder[:i], cc.lruOrder[i+1:]...)
			return
		}
	}
}

// acquire returns the cached TableCatalog for schema.name, querying the
// server and populating the cache on a miss, and increments its refcount.
// Release the ref with releaseTableCatalog() when the borrowing Statement no longer
// needs it (statement.Destroy).
func (c *Connection) acquireTableCatalog(ctx context.Context, schema, name string) (*TableCatalog, error) {
	key := catalogKey(schema, name)

	c.catalog.mu.Lock()
	if e, ok := c.catalog.entries[key]; ok {
		e.refs++
		c.catalog.touch(key)
		c.catalog.mu.Unlock()
		return e.tbl, nil
	}
	if len(c.catalog.entries) >= c.catalog.capacity {
		c.catalog.evictOneUnrefed()
	}
	c.catalog.mu.Unlock()

	tbl, err := c.fetchTableCatalog(ctx, schema, name)
	if err != nil {
		return nil, err
	}

	c.catalog.mu.Lock()
	c.catalog.entries[key] = &cacheEntry{refs: 1, tbl: tbl}
	c.catalog.touch(key)
	c.catalog.mu.Unlock()

	return tbl, nil
}

func (c *Connection) releaseTableCatalog(schema, name string) {
	key := catalogKey(schema, name)
	c.catalog.mu.Lock()
	defer c.catalog.mu.Unlock()
	if e, ok := c.catalog.entries[key]; ok && e.refs > 0 {
		e.refs--
	}
}

// fetchTableCatalog runs the pg_attribute/relhasoids lookup spec.md §4.4
// describes for a parsed, single-table statement. It relies on the
// connection's normal sendQuery path (not a side channel) since catalog
// lookups are ordinary SQL against system catalogs.
func (c *Connection) fetchTableCatalog(ctx context.Context, schema, name string) (*TableCatalog, error) {
	if schema == "" {
		schema = "public"
	}

	relRes, err := c.exec(ctx, fmt.Sprintf(
		`SELECT c.oid, c.relhasoids FROM pg_catalog.pg_class c
		 JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = '%s' AND c.relname = '%s'`,
		escapeLiteral(schema), escapeLiteral(name)))
	if err != nil {
		return nil, err
	}
	if relRes == nil || len(relRes.rows) == 0 {
		return nil, newError("fetchTableCatalog", CodeColumnOutOfRange, "relation %q not found", schema+"."+name)
	}
	relOID := parseOidText(relRes.rows[0][0])
	hasOids := parseBoolText(relRes.rows[0][1])

	attRes, err := c.exec(ctx, fmt.Sprintf(
		`SELECT a.attname, a.atttypid, a.attnum, a.attnotnull, a.atthasdef
		 FROM pg_catalog.pg_attribute a
		 WHERE a.attrelid = %d AND a.attnum > 0 AND NOT a.attisdropped
		 ORDER BY a.attnum`, relOID))
	if err != nil {
		return nil, err
	}

	tbl := &TableCatalog{OID: oid.Oid(relOID), Schema: schema, Name: name, HasOids: hasOids}
	for _, row := range attRes.rows {
		tbl.Columns = append(tbl.Columns, Attribute{
			Name:       string(row[0].Bytes),
			Type:       oid.Oid(parseOidText(row[1])),
			Num:        int16(parseOidText(row[2])),
			NotNull:    parseBoolText(row[3]),
			HasDefault: parseBoolText(row[4]),
		})
	}

	c.resolveBestQual(ctx, tbl)
	return tbl, nil
}

// resolveBestQual picks the row identifier spec.md §4.4 describes: oid if
// the table has it, otherwise a single-column unique non-null non-
// expression index, otherwise the row is not individually addressable.
//
// Only the oid path currently grants Updatable: keyset.qualifier always
// locates a row by ctid (with an oid AND-clause layered on when present),
// never by BestQual. A table that only clears the unique-index fallback
// would be positioned-UPDATE/DELETE'd by bare ctid alone, which a VACUUM
// can silently repoint at a different row — unsafe without BestQual
// actually wired into the qualifier. BestQual is still computed and
// stored here so a future qualifier() that ANDs it in for the non-oid
// case doesn't need a second catalog round trip.
func (c *Connection) resolveBestQual(ctx context.Context, tbl *TableCatalog) {
	if tbl.HasOids {
		tbl.BestQual = `"oid" = %v`
		tbl.Updatable = true
		return
	}

	idxRes, err := c.exec(ctx, fmt.Sprintf(
		`SELECT a.attname FROM pg_catalog.pg_index i
		 JOIN pg_catalog.pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = i.indkey[0]
		 WHERE i.indrelid = %d AND i.indisunique AND i.indnatts = 1 AND a.attnotnull
		 LIMIT 1`, tbl.OID))
	tbl.Updatable = false
	if err != nil || idxRes == nil || len(idxRes.rows) == 0 {
		return
	}
	col := string(idxRes.rows[0][0].Bytes)
	tbl.BestQual = fmt.Sprintf("%q = %%v", col)
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func parseOidText(f Field) uint32 {
	var n uint32
	fmt.Sscanf(string(f.Bytes), "%d", &n)
	return n
}

func parseBoolText(f Field) bool {
	if len(f.Bytes) == 0 {
		return false
	}
	switch f.Bytes[0] {
	case 't', 'T', '1':
		return true
	}
	return false
}
