package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleKindString(t *testing.T) {
	require.Equal(t, "Env", HandleEnv.String())
	require.Equal(t, "Conn", HandleConn.String())
	require.Equal(t, "Stmt", HandleStmt.String())
	require.Equal(t, "Desc", HandleDesc.String())
	require.Equal(t, "Unknown", HandleKind(99).String())
}

func TestHandleAsConnRejectsWrongKind(t *testing.T) {
	h := NewEnvHandle(&Environment{})

	_, ok := h.AsConn()
	require.False(t, ok)

	e, ok := h.AsEnv()
	require.True(t, ok)
	require.NotNil(t, e)
}

func TestHandleRoundTripsEachKind(t *testing.T) {
	conn := &Connection{}
	h := NewConnHandle(conn)
	require.Equal(t, HandleConn, h.Kind())
	got, ok := h.AsConn()
	require.True(t, ok)
	require.Same(t, conn, got)

	stmt := &Statement{}
	sh := NewStmtHandle(stmt)
	gotStmt, ok := sh.AsStmt()
	require.True(t, ok)
	require.Same(t, stmt, gotStmt)
}

func TestErrWrongKind(t *testing.T) {
	err := errWrongKind("SQLFreeHandle", HandleStmt, HandleConn)
	require.Equal(t, CodeInvalidHandle, err.Code)
	require.Contains(t, err.Error(), "Stmt")
	require.Contains(t, err.Error(), "Conn")
}

func TestDescriptorRecordCountParam(t *testing.T) {
	s := &Statement{params: map[int]*BoundParam{1: {}, 2: {}}}
	d := NewDescriptor(s, DescAppParam)
	require.Equal(t, 2, d.RecordCount())
	require.Equal(t, DescAppParam, d.Kind())
}

func TestDescriptorRecordCountImplRowWithoutResults(t *testing.T) {
	s := &Statement{}
	d := NewDescriptor(s, DescImplRow)
	require.Equal(t, 0, d.RecordCount())
}

func TestDescriptorString(t *testing.T) {
	s := &Statement{bindings: map[int]*ColumnBinding{1: {}}}
	d := NewDescriptor(s, DescAppRow)
	require.Contains(t, d.String(), "records=1")
}
