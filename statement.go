package pgodbc

import (
	"sync"

	"github.com/psqlodbc-go/pgodbc/internal/sqlparse"
)

// CursorType selects the scroll engine's behavior, spec.md §4.2.
type CursorType int

const (
	CursorForwardOnly CursorType = iota
	CursorStatic
	CursorKeysetDriven
	CursorDynamic
)

// Concurrency selects locking/update semantics, spec.md §4.2.
type Concurrency int

const (
	ConcurrencyReadOnly Concurrency = iota
	ConcurrencyRowVersion
)

// ParseStatus tracks how far internal/sqlparse got, spec.md §3.
type ParseStatus int

const (
	ParseNone ParseStatus = iota
	ParseOK
	ParseFailed
)

// StmtOptions are the per-statement knobs spec.md §3 lists.
type StmtOptions struct {
	CursorType    CursorType
	Concurrency   Concurrency
	RowsetSize    int
	MaxRows       int
	MaxLength     int
	UseBookmarks  bool
	RetrieveData  bool
}

// BoundParam is one entry of the 1-based parameter array, spec.md §3.
type BoundParam struct {
	CType       CType
	SQLType     oidSQLType
	Precision   int
	Scale       int
	Value       any // bound Go value, or a data-at-execution placeholder
	DataAtExec  bool
	LOOid       uint32 // large-object OID slot, when this parameter streamed through one
}

// oidSQLType is a placeholder alias until the public ODBC-facing SQL type
// enumeration (handle.go) assigns its own constants; convert.go is what
// actually interprets BoundParam.SQLType against the wire OID table.
type oidSQLType int

// CType is the application C-type tag a bound parameter or bound column
// carries — mirrors ODBC's SQL_C_* constants, interpreted by convert.go.
type CType int

const (
	CTypeDefault CType = iota
	CTypeChar
	CTypeWChar
	CTypeLong
	CTypeShort
	CTypeFloat
	CTypeDouble
	CTypeBinary
	CTypeDate
	CTypeTime
	CTypeTimestamp
	CTypeNumeric
	CTypeBit
	CTypeBigInt
)

// ColumnBinding is one entry of the by-column-number binding array used for
// row-wise result delivery, spec.md §3.
type ColumnBinding struct {
	CType    CType
	Buffer   []byte
	Indicator *int64
}

// Statement belongs to one Connection; spec.md §3's full data model.
type Statement struct {
	mu sync.Mutex

	conn *Connection
	slot int

	SQL string

	Options StmtOptions

	tables []*sqlparse.TableInfo
	fields []*sqlparse.FieldInfo
	parseStatus ParseStatus
	updatable   bool

	params   map[int]*BoundParam
	bindings map[int]*ColumnBinding

	results *Result // head of the result chain

	currTuple   int
	rowsetStart int
	lastFetchCount int

	cursorName  string
	planName    string

	rollback *rollbackLog
}

// NewStatement allocates a Statement under c and registers it, per
// spec.md §3's lifecycle ("allocated under a connection, may be reused
// after CLOSE; destroyed only if not currently executing").
func NewStatement(c *Connection) *Statement {
	s := &Statement{
		conn:     c,
		params:   map[int]*BoundParam{},
		bindings: map[int]*ColumnBinding{},
		Options: StmtOptions{
			RowsetSize:   1,
			RetrieveData: true,
		},
	}
	s.slot = c.registerStatement(s)
	return s
}

// BindParameter registers parameter n (1-based) for the next Execute.
func (s *Statement) BindParameter(n int, p BoundParam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[n] = &p
}

// BindColumn registers column n (1-based) for row-wise result delivery.
func (s *Statement) BindColumn(n int, b ColumnBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[n] = &b
}

// Close releases the statement's results, parameters and bindings. The
// statement stays in its connection's registry (Destroy removes it) and is
// reusable after Close to re-Prepare/Execute, matching "may be reused after CLOSE".
func (s *Statement) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.params = map[int]*BoundParam{}
	s.bindings = map[int]*ColumnBinding{}
	s.currTuple = -1
	return nil
}

// Destroy permanently removes the statement from its connection.
func (s *Statement) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	s.conn.unregisterStatement(s.slot)
	return nil
}

func (s *Statement) errorf(fn string, code Code, format string, args ...any) *Error {
	e := newError(fn, code, format, args...)
	s.conn.diag.push(e)
	return e
}
