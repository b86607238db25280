package pgodbc

import (
	"context"
	"fmt"
	"strings"

	"github.com/psqlodbc-go/pgodbc/internal/sqlparse"
)

// FetchOrientation is spec.md §4.2's fetch-orientation enumeration.
type FetchOrientation int

const (
	FetchNext FetchOrientation = iota
	FetchPrior
	FetchFirst
	FetchLast
	FetchAbsolute
	FetchRelative
	FetchBookmark
)

const (
	defaultCacheMultiplier = 4
	maxCacheRows           = 256
)

// Execute parses, rewrites, and dispatches s.SQL. SELECT statements opened
// with a scrollable CursorType go through the DECLARE/MOVE/FETCH scroll
// engine (openScrollCursor); everything else goes straight through the
// connection's ordinary send_query path, matching spec.md §4.1/§4.2's
// division of labor.
func (s *Statement) Execute(ctx context.Context) (*Result, error) {
	parsed := sqlparse.Parse(s.SQL)
	s.tables = parsed.Tables
	s.fields = parsed.Fields
	s.updatable = parsed.Updatable
	s.parseStatus = ParseOK

	rewritten, err := rewriteQuery(s)
	if err != nil {
		s.parseStatus = ParseFailed
		return nil, err
	}

	if parsed.Kind != sqlparse.KindSelect || s.Options.CursorType == CursorForwardOnly || parsed.ForUpdate {
		flags := FlagGoIntoTransaction | FlagRollbackOnError
		r, err := s.conn.sendQuery(ctx, rewritten, QueryInfo{}, flags, s)
		s.results = r
		s.currTuple = -1
		return r, err
	}

	return s.openScrollCursor(ctx, rewritten, parsed)
}

// openScrollCursor implements spec.md §4.2's cursor-kind setup: DECLARE a
// server-side SCROLL CURSOR, optionally with the appended ctid/oid keyset
// projection when the statement is eligible to be updatable.
func (s *Statement) openScrollCursor(ctx context.Context, sql string, parsed *sqlparse.Result) (*Result, error) {
	updatable := s.updatable && s.Options.Concurrency == ConcurrencyRowVersion && len(parsed.Tables) == 1

	var tbl *TableCatalog
	if updatable {
		t := parsed.Tables[0]
		var err error
		tbl, err = s.conn.acquireTableCatalog(ctx, t.Schema, t.Name)
		if err != nil || !tbl.Updatable {
			updatable = false
		}
	}

	s.cursorName = fmt.Sprintf("pgodbc_c%d", s.slot)
	declareSQL := declareCursor(sql, s.cursorName, updatable, updatable && tbl.HasOids)

	if _, err := s.conn.sendQuery(ctx, declareSQL, QueryInfo{}, FlagGoIntoTransaction, s); err != nil {
		return nil, err
	}

	r := newResult(s.conn)
	r.cursorName = s.cursorName
	r.base = -1 // empty cache; first Fetch always misses
	if updatable {
		r.keys = newKeySet(tbl)
		r.rollback = newRollbackLog()
	}
	r.Status = ResTuplesOK

	s.results = r
	s.currTuple = -1
	s.rowsetStart = 0
	s.lastFetchCount = 0
	return r, nil
}

// computeTargetRowsetStart implements spec.md §4.2 fetch-orientation step
// 1: translate an orientation + offset into an absolute target rowset
// start, using the last fetch count (including rows skipped because they
// were marked deleted) to drive NEXT/PRIOR.
func (s *Statement) computeTargetRowsetStart(orient FetchOrientation, offset int, r *Result) int {
	switch orient {
	case FetchNext:
		return s.rowsetStart + s.lastFetchCount
	case FetchPrior:
		target := s.rowsetStart - s.effectiveRowsetSize()
		if target < 0 {
			target = 0
		}
		return target
	case FetchFirst:
		return 0
	case FetchAbsolute:
		if offset < 0 {
			return 0
		}
		return offset
	case FetchRelative:
		target := s.rowsetStart + offset
		if target < 0 {
			target = 0
		}
		return target
	case FetchBookmark:
		if offset < 0 {
			return 0
		}
		return offset
	case FetchLast:
		// Deferred: resolved once MOVE ALL reports the true end, see Fetch.
		return -1
	}
	return s.rowsetStart
}

func (s *Statement) effectiveRowsetSize() int {
	if s.Options.RowsetSize < 1 {
		return 1
	}
	return s.Options.RowsetSize
}

func (s *Statement) cacheSize() int {
	n := s.effectiveRowsetSize() * defaultCacheMultiplier
	if n > maxCacheRows {
		n = maxCacheRows
	}
	if n < s.effectiveRowsetSize() {
		n = s.effectiveRowsetSize()
	}
	return n
}

// Fetch implements spec.md §4.2's fetch-orientation algorithm steps 2-6:
// serve from cache when possible, otherwise MOVE the server cursor and
// re-FETCH, decode any appended keyset columns, splice in locally added
// rows past the server-visible end, and re-materialize row-status bits
// from the deleted/updated overlays.
func (s *Statement) Fetch(ctx context.Context, orient FetchOrientation, offset int) (*Result, error) {
	r := s.results
	if r == nil {
		return nil, s.errorf("Fetch", CodeInvalidCursorState, "no open cursor")
	}
	rowsetSize := s.effectiveRowsetSize()

	if orient == FetchLast {
		if err := s.moveToEnd(ctx, r); err != nil {
			return nil, err
		}
	} else {
		target := s.computeTargetRowsetStart(orient, offset, r)
		if !s.cacheCovers(r, target, rowsetSize) {
			if err := s.repositionCache(ctx, r, target, rowsetSize); err != nil {
				return nil, err
			}
		}
	}

	s.rowsetStart = r.base
	s.lastFetchCount = len(r.rows)
	s.currTuple = r.base + len(r.rows)

	s.spliceAddedOverlay(r)
	s.applyOverlayStatus(r)

	return r, nil
}

func (s *Statement) cacheCovers(r *Result, target, rowsetSize int) bool {
	if r.base < 0 {
		return false
	}
	return target >= r.base && target+rowsetSize <= r.base+len(r.rows)
}

// repositionCache issues MOVE to place the server cursor and FETCH to
// refill the cache, per spec.md §4.2 step 3.
func (s *Statement) repositionCache(ctx context.Context, r *Result, target, rowsetSize int) error {
	delta := target - s.currentServerPos(r)
	if delta != 0 {
		dir := "FORWARD"
		n := delta
		if delta < 0 {
			dir = "BACKWARD"
			n = -delta
		}
		if _, err := s.conn.exec(ctx, fmt.Sprintf("MOVE %s %d IN %s", dir, n, s.cursorName)); err != nil {
			return err
		}
	}

	cacheN := s.cacheSize()
	if cacheN < rowsetSize {
		cacheN = rowsetSize
	}

	res, err := s.conn.exec(ctx, fmt.Sprintf("FETCH %d IN %s", cacheN, s.cursorName))
	if err != nil {
		return err
	}

	r.Columns = res.Columns
	hasOid := false
	if r.keys != nil && r.keys.tbl != nil {
		hasOid = r.keys.tbl.HasOids
	}
	r.rows, r.Columns = splitKeysetColumns(res.rows, r.Columns, r.keys != nil, hasOid)
	if r.keys != nil {
		r.keys.entries = r.keys.entries[:0]
		for _, raw := range res.rows {
			appendKeyEntryFromRaw(r.keys, raw, hasOid)
		}
	}
	r.base = target
	r.keyBase = target
	return nil
}

// currentServerPos tracks the absolute row the server cursor is
// positioned just after. Approximated as base+len(rows) of the last
// fetch, which is exact as long as every reposition goes through
// repositionCache; moveToEnd's MOVE ALL, the one direct MOVE, resets base
// and rows to match.
func (s *Statement) currentServerPos(r *Result) int {
	if r.base < 0 {
		return 0
	}
	return r.base + len(r.rows)
}

// moveToEnd implements spec.md §4.2 step 3's FETCH LAST handling: MOVE ALL
// to find the true end, then MOVE BACKWARD to land the cache on the final
// rowset.
func (s *Statement) moveToEnd(ctx context.Context, r *Result) error {
	tag, err := s.conn.exec(ctx, fmt.Sprintf("MOVE ALL IN %s", s.cursorName))
	if err != nil {
		return err
	}
	// MOVE ALL reports how many rows it moved from the current position.
	total := s.currentServerPos(r) + int(tag.RowsAffected())
	rowsetSize := s.effectiveRowsetSize()
	target := total - rowsetSize
	if target < 0 {
		target = 0
	}
	r.base = total // server cursor is now after the last row
	r.rows = nil
	return s.repositionCache(ctx, r, target, rowsetSize)
}

// splitKeysetColumns strips the trailing ctid (and oid, when present)
// columns from each decoded row and the reported column-info vector, per
// spec.md §4.2 step 4.
func splitKeysetColumns(rows [][]Field, cols []ColumnInfo, hasKeyset, hasOid bool) ([][]Field, []ColumnInfo) {
	if !hasKeyset {
		return rows, cols
	}
	trail := 1
	if hasOid {
		trail = 2
	}
	if len(cols) < trail {
		return rows, cols
	}
	newCols := cols[:len(cols)-trail]
	newRows := make([][]Field, len(rows))
	for i, row := range rows {
		if len(row) < trail {
			newRows[i] = row
			continue
		}
		newRows[i] = row[:len(row)-trail]
	}
	return newRows, newCols
}

func appendKeyEntryFromRaw(ks *keySet, row []Field, hasOid bool) {
	trail := 1
	if hasOid {
		trail = 2
	}
	if len(row) < trail {
		ks.append(keyEntry{})
		return
	}
	ctidField := row[len(row)-trail]
	block, offset, _ := parseCtid(ctidField.Bytes)
	var oidVal uint32
	if hasOid {
		oidVal = parseOidText(row[len(row)-1])
	}
	ks.append(keyEntry{block: block, offset: offset, oid: oidVal})
}

// spliceAddedOverlay implements spec.md §4.2 step 5: when the rowset
// extends past server-visible data, synthesize rows from the locally
// added overlay instead of leaving the window short.
func (s *Statement) spliceAddedOverlay(r *Result) {
	if len(r.added) == 0 {
		return
	}
	want := s.effectiveRowsetSize()
	for len(r.rows) < want && len(r.added) > 0 {
		ov := r.added[0]
		r.added = r.added[1:]
		r.rows = append(r.rows, ov.row)
		if r.keys != nil {
			r.keys.append(keyEntry{status: rowAdded, addedLogicalIndex: ov.logicalIndex})
		}
	}
}

// applyOverlayStatus implements spec.md §4.2 step 6: OR in
// SQL_ROW_DELETED/SQL_ROW_UPDATED for any cached row whose absolute index
// is present in the deleted/updated overlays.
func (s *Statement) applyOverlayStatus(r *Result) {
	if r.keys == nil {
		return
	}
	for i := range r.keys.entries {
		abs := r.base + i
		if r.deleted[abs] {
			r.keys.entries[i].status = rowDeleted
		} else if st, ok := r.updated[abs]; ok {
			r.keys.entries[i].status = st
		}
	}
}

// PositionedUpdate implements spec.md §4.2's positioned-update operation:
// build an UPDATE against the row's keyset qualifier (ctid, plus oid when
// the table has oids), execute it through the
// normal send_query path, and record a rollback entry.
func (s *Statement) PositionedUpdate(ctx context.Context, rowIdx int, cols map[string]any) error {
	r := s.results
	if r == nil || r.keys == nil {
		return s.errorf("PositionedUpdate", CodeInvalidCursorState, "cursor is not updatable")
	}
	if len(s.tables) != 1 {
		return s.errorf("PositionedUpdate", CodeInvalidCursorState, "statement does not resolve to exactly one base table")
	}
	entry, ok := r.keys.at(rowIdx)
	if !ok {
		return s.errorf("PositionedUpdate", CodeRowOutOfRange, "row %d is not in the current rowset", rowIdx)
	}

	t := s.tables[0]
	var setClauses []string
	for col, val := range cols {
		p := &BoundParam{Value: val}
		text, err := formatBoundParam(p)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, fmt.Sprintf("%q = %s", col, text))
	}
	qual, err := r.keys.qualifier(rowIdx)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING ctid", t.RefName(), strings.Join(setClauses, ", "), qual)

	res, err := s.conn.sendQuery(ctx, sql, QueryInfo{}, FlagGoIntoTransaction, s)
	if err != nil {
		return err
	}
	if r.rollback != nil {
		r.rollback.record(rollbackEntry{index: rowIdx, absIndex: r.base + rowIdx, op: rollbackUpdate, oldBlock: entry.block, oldOffset: entry.offset, oldRow: cloneFields(r.rows[rowIdx])})
	}
	if len(res.rows) > 0 {
		nb, no, ok := parseCtid(res.rows[0][0].Bytes)
		if ok {
			r.keys.entries[rowIdx].block = nb
			r.keys.entries[rowIdx].offset = no
		}
	}
	r.updated[r.base+rowIdx] = rowUpdated
	r.keys.markUpdated(rowIdx)
	return nil
}

// PositionedDelete implements spec.md §4.2's positioned-delete operation.
func (s *Statement) PositionedDelete(ctx context.Context, rowIdx int) error {
	r := s.results
	if r == nil || r.keys == nil {
		return s.errorf("PositionedDelete", CodeInvalidCursorState, "cursor is not updatable")
	}
	if len(s.tables) != 1 {
		return s.errorf("PositionedDelete", CodeInvalidCursorState, "statement does not resolve to exactly one base table")
	}
	qual, err := r.keys.qualifier(rowIdx)
	if err != nil {
		return err
	}
	t := s.tables[0]
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", t.RefName(), qual)

	if _, err := s.conn.sendQuery(ctx, sql, QueryInfo{}, FlagGoIntoTransaction, s); err != nil {
		return err
	}
	entry, _ := r.keys.at(rowIdx)
	if r.rollback != nil {
		r.rollback.record(rollbackEntry{index: rowIdx, absIndex: r.base + rowIdx, op: rollbackDelete, oldBlock: entry.block, oldOffset: entry.offset})
	}
	r.deleted[r.base+rowIdx] = true
	r.keys.markDeleted(rowIdx)
	return nil
}

// PositionedInsert implements spec.md §4.2's positioned-insert operation:
// INSERT the row, read it back from the INSERT's RETURNING *, ctid output
// (the trailing ctid is dropped), append it to the added_tuples
// overlay keyed by a negative logical index, and expose a bookmark.
func (s *Statement) PositionedInsert(ctx context.Context, values map[string]any) (bookmark int, err error) {
	r := s.results
	if r == nil || r.keys == nil {
		return 0, s.errorf("PositionedInsert", CodeInvalidCursorState, "cursor is not updatable")
	}
	if len(s.tables) != 1 {
		return 0, s.errorf("PositionedInsert", CodeInvalidCursorState, "statement does not resolve to exactly one base table")
	}
	t := s.tables[0]

	var cols, vals []string
	for col, v := range values {
		text, ferr := formatBoundParam(&BoundParam{Value: v})
		if ferr != nil {
			return 0, ferr
		}
		cols = append(cols, fmt.Sprintf("%q", col))
		vals = append(vals, text)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *, ctid", t.RefName(), strings.Join(cols, ", "), strings.Join(vals, ", "))

	res, err := s.conn.sendQuery(ctx, sql, QueryInfo{}, FlagGoIntoTransaction, s)
	if err != nil {
		return 0, err
	}
	if len(res.rows) == 0 {
		return 0, s.errorf("PositionedInsert", CodeInvalidCursorState, "INSERT ... RETURNING produced no row")
	}
	row := res.rows[0]
	newRow := row[:len(row)-1]

	logicalIndex := -(len(r.added) + 1)
	r.added = append(r.added, overlayRow{logicalIndex: logicalIndex, row: cloneFields(newRow)})

	if r.rollback != nil {
		r.rollback.record(rollbackEntry{logicalIndex: logicalIndex, op: rollbackInsert})
	}

	return r.RowCount() + len(r.added), nil
}

func cloneFields(row []Field) []Field {
	out := make([]Field, len(row))
	copy(out, row)
	return out
}
