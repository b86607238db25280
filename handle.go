package pgodbc

import "fmt"

// HandleKind tags a Handle the way ODBC's HENV/HDBC/HSTMT/HDESC opaque
// pointers do, per spec.md §9's "duck-typed handle polymorphism... becomes
// a tagged variant over {Env, Conn, Stmt, Desc} at entry points; the core
// routines take strongly-typed references." This package's own API never
// needs the variant internally (every function already takes a concrete
// *Environment/*Connection/*Statement/*Descriptor) — Handle exists purely
// as the thin outward-facing layer an ODBC-shaped caller sits behind.
type HandleKind int

const (
	HandleEnv HandleKind = iota
	HandleConn
	HandleStmt
	HandleDesc
)

func (k HandleKind) String() string {
	switch k {
	case HandleEnv:
		return "Env"
	case HandleConn:
		return "Conn"
	case HandleStmt:
		return "Stmt"
	case HandleDesc:
		return "Desc"
	default:
		return "Unknown"
	}
}

// Handle is a tagged reference to exactly one of the four resource kinds.
// Zero value is invalid; construct with the New*Handle functions.
type Handle struct {
	kind HandleKind
	env  *Environment
	conn *Connection
	stmt *Statement
	desc *Descriptor
}

func NewEnvHandle(e *Environment) Handle { return Handle{kind: HandleEnv, env: e} }
func NewConnHandle(c *Connection) Handle { return Handle{kind: HandleConn, conn: c} }
func NewStmtHandle(s *Statement) Handle  { return Handle{kind: HandleStmt, stmt: s} }
func NewDescHandle(d *Descriptor) Handle { return Handle{kind: HandleDesc, desc: d} }

func (h Handle) Kind() HandleKind { return h.kind }

func (h Handle) AsEnv() (*Environment, bool) { return h.env, h.kind == HandleEnv }
func (h Handle) AsConn() (*Connection, bool) { return h.conn, h.kind == HandleConn }
func (h Handle) AsStmt() (*Statement, bool)  { return h.stmt, h.kind == HandleStmt }
func (h Handle) AsDesc() (*Descriptor, bool) { return h.desc, h.kind == HandleDesc }

// errWrongKind is returned by a core routine that received a Handle of the
// wrong tag, the typed-reference equivalent of ODBC's SQL_INVALID_HANDLE.
func errWrongKind(fn string, want HandleKind, got HandleKind) *Error {
	return newError(fn, CodeInvalidHandle, "expected a %s handle, got %s", want, got)
}

// DescKind distinguishes the four ODBC descriptor roles: bound parameters
// the application supplies (APD), the implementation's resolved parameter
// metadata (IPD), bound result columns the application supplies (ARD), and
// the implementation's resolved result column metadata (IRD).
type DescKind int

const (
	DescAppParam DescKind = iota
	DescImplParam
	DescAppRow
	DescImplRow
)

// Descriptor is a thin view over a Statement's existing params/bindings/
// column-info maps, per spec.md §9's framing of HDESC as an opaque handle
// over data the core already owns — it holds no state of its own beyond
// which statement and which of the four roles it's a view of.
type Descriptor struct {
	stmt *Statement
	kind DescKind
}

func NewDescriptor(s *Statement, kind DescKind) *Descriptor {
	return &Descriptor{stmt: s, kind: kind}
}

func (d *Descriptor) Kind() DescKind { return d.kind }

// RecordCount returns how many bound records this descriptor currently
// exposes, mirroring SQLGetDescField(SQL_DESC_COUNT).
func (d *Descriptor) RecordCount() int {
	d.stmt.mu.Lock()
	defer d.stmt.mu.Unlock()
	switch d.kind {
	case DescAppParam, DescImplParam:
		return len(d.stmt.params)
	case DescAppRow:
		return len(d.stmt.bindings)
	case DescImplRow:
		if d.stmt.results != nil {
			return len(d.stmt.results.Columns)
		}
		return 0
	}
	return 0
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("Descriptor{kind=%d, records=%d}", d.kind, d.RecordCount())
}
