package pgodbc

import (
	"fmt"
)

// keyEntry is one row's positional identity, spec.md §3's KeySet record:
// a parallel array of {block, offset, oid, status-bits} kept alongside the
// row cache so a cursor can re-locate a row on the server after the tuple
// cache has scrolled away from it.
type keyEntry struct {
	block  int32
	offset int16
	oid    uint32 // 0 when the table has no oids; the oid AND-clause is then omitted
	status rowStatus

	// addedLogicalIndex is the overlayRow.logicalIndex this entry was
	// spliced in from (cursor.go's spliceAddedOverlay), or 0 for a row
	// that came from the server. Lets a rolled-back positioned insert be
	// found again after it has moved from r.added into r.keys/r.rows.
	addedLogicalIndex int
}

// keySet is the parallel identity array for one updatable Result, spec.md
// §4.2 ("a keyset is a parallel array of row identities, independent of
// the tuple cache it identifies rows for"). There is no teacher file to
// adapt this from (database/sql's Rows has no concept of row identity);
// grounded directly on spec.md §3/§4.2's record layout.
type keySet struct {
	tbl     *TableCatalog
	entries []keyEntry
}

func newKeySet(tbl *TableCatalog) *keySet {
	return &keySet{tbl: tbl}
}

func (k *keySet) append(e keyEntry) {
	k.entries = append(k.entries, e)
}

func (k *keySet) at(i int) (keyEntry, bool) {
	if i < 0 || i >= len(k.entries) {
		return keyEntry{}, false
	}
	return k.entries[i], true
}

func (k *keySet) setStatus(i int, st rowStatus) {
	if i < 0 || i >= len(k.entries) {
		return
	}
	k.entries[i].status = st
}

func (k *keySet) markDeleted(i int) { k.setStatus(i, rowDeleted) }
func (k *keySet) markUpdated(i int) { k.setStatus(i, rowUpdated) }

// qualifier returns the WHERE-clause fragment that re-locates entry i on
// the server. ctid is the primary qualifier — it always exists — with an
// "oid" = N clause ANDed on top when the table carries oids, narrowing the
// match back to the exact row even if the ctid has since been recycled by
// a VACUUM between the original FETCH and the positioned operation.
func (k *keySet) qualifier(i int) (string, error) {
	e, ok := k.at(i)
	if !ok {
		return "", fmt.Errorf("pgodbc: keyset index %d out of range", i)
	}
	qual := fmt.Sprintf(`ctid = '(%d,%d)'`, e.block, e.offset)
	if k.tbl != nil && k.tbl.HasOids && e.oid != 0 {
		qual += fmt.Sprintf(` AND "oid" = %d`, e.oid)
	}
	return qual, nil
}

// parseCtid decodes the wire text form "(block,offset)" the server sends
// for a ctid system column.
func parseCtid(text []byte) (block int32, offset int16, ok bool) {
	var b int32
	var o int16
	n, err := fmt.Sscanf(string(text), "(%d,%d)", &b, &o)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return b, o, true
}
