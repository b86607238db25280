package pgodbc

import "github.com/psqlodbc-go/pgodbc/oid"

// ResultStatus is the per-result state spec.md §3 describes.
type ResultStatus int

const (
	ResEmpty ResultStatus = iota
	ResCommandOK
	ResTuplesOK
	ResCopyIn
	ResCopyOut
	ResNonFatalError
	ResFatalError
	ResEndOfTuples
)

// ColumnInfo is one entry of a Result's column-info vector, spec.md §3.
type ColumnInfo struct {
	Name     string
	Type     oid.Oid
	TypeMod  int32
	DispSize int
	Relid    oid.Oid
	Attnum   int16
}

// Field is one cell of a cached row: length + bytes, NULL when Bytes == nil.
type Field struct {
	Bytes []byte
}

func (f Field) IsNull() bool { return f.Bytes == nil }

// rowStatus is the overlay state of one KeySet entry, spec.md §4.2; setting
// a new status replaces the old one, so an entry holds one state at a time.
type rowStatus uint8

const (
	rowOK rowStatus = iota
	rowAdded
	rowUpdated
	rowDeleted
	rowError
)

// Result is a lazily-grown window over a server result stream: spec.md §3's
// richest data-model entry. At most one of the inserted/updated/deleted
// overlay flags is set per keyset row (enforced by keyset.go); num cached
// rows and num cached keys agree when the result carries a keyset.
type Result struct {
	conn *Connection

	Columns []ColumnInfo
	Status  ResultStatus

	rows [][]Field // tuple cache

	keys *keySet // nil unless this result is updatable, see keyset.go

	cursorName string

	numTotalRead int   // rows the server has produced for this result so far
	cursTuple    int   // highest absolute server row index seen
	base         int   // absolute row index of rows[0]
	keyBase      int   // absolute row index of keys.entries[0]; must equal base when keys != nil
	moveOffset   int   // pending MOVE delta not yet issued
	moveDir      int   // +1 forward, -1 backward

	commandTag string
	rowsAffected int64

	next *Result // result chain for multi-statement dispatch

	eof bool

	rollback *rollbackLog

	added   []overlayRow // locally inserted rows not yet visible via the cursor
	updated map[int]rowStatus
	deleted map[int]bool

	firstErr *Error
}

type overlayRow struct {
	logicalIndex int // negative; PositionedInsert returns RowCount()+len(added) as the bookmark, see cursor.go
	row          []Field
}

func newResult(c *Connection) *Result {
	return &Result{conn: c, updated: map[int]rowStatus{}, deleted: map[int]bool{}}
}

// RowCount returns the number of rows currently cached (not the total result
// size, which for a streamed cursor may not be known yet).
func (r *Result) RowCount() int { return len(r.rows) }

// CommandTag returns the free-form command-status tag ("SELECT", "INSERT 0 2", ...).
func (r *Result) CommandTag() string { return r.commandTag }

// RowsAffected returns the trailing integer of the command tag, when present.
func (r *Result) RowsAffected() int64 { return r.rowsAffected }

// Next returns the next result in the multi-statement chain, or nil.
func (r *Result) Next() *Result { return r.next }

// GetData converts the raw wire bytes of one cached cell through the
// connection's Codec, the SQLGetData-equivalent entry point spec.md §4.5's
// conversion matrix exists to serve. rowIdx and col are both 0-based
// against the current cache window (r.rows), not absolute server row
// numbers or 1-based SQL column ordinals.
func (r *Result) GetData(rowIdx, col int) (any, error) {
	if rowIdx < 0 || rowIdx >= len(r.rows) {
		return nil, newError("GetData", CodeRowOutOfRange, "row index %d out of range", rowIdx)
	}
	row := r.rows[rowIdx]
	if col < 0 || col >= len(row) {
		return nil, newError("GetData", CodeColumnOutOfRange, "column index %d out of range", col)
	}
	field := row[col]
	if field.IsNull() {
		return nil, nil
	}
	var typ oid.Oid
	if col < len(r.Columns) {
		typ = r.Columns[col].Type
	}
	return r.conn.codec.Decode(typ, field.Bytes)
}
