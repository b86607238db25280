package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStatement(sql string, params map[int]*BoundParam) *Statement {
	return &Statement{
		conn:   &Connection{standardConformingStrings: true},
		SQL:    sql,
		params: params,
	}
}

func TestRewriteQuerySubstitutesPlaceholder(t *testing.T) {
	s := newTestStatement("SELECT * FROM t WHERE id = ?", map[int]*BoundParam{
		1: {Value: int64(5)},
	})
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM t WHERE id = 5", out)
}

func TestRewriteQueryPassesQuotedLiteralsThrough(t *testing.T) {
	s := newTestStatement("SELECT 'it''s $1 fine'", nil)
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT 'it''s $1 fine'", out)
}

func TestRewriteQueryDollarQuoted(t *testing.T) {
	s := newTestStatement("SELECT $$a ? b$$", nil)
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT $$a ? b$$", out)
}

func TestRewriteQueryFnEscape(t *testing.T) {
	s := newTestStatement("SELECT {fn UCASE(name)} FROM t", nil)
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT upper(name) FROM t", out)
}

func TestRewriteQueryDateLiteralEscape(t *testing.T) {
	s := newTestStatement("SELECT {d '2024-01-01'}", nil)
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT DATE '2024-01-01'", out)
}

func TestRewriteQueryCallEscape(t *testing.T) {
	s := newTestStatement("{call my_proc(?)}", map[int]*BoundParam{
		1: {Value: int64(1)},
	})
	out, err := rewriteQuery(s)
	require.NoError(t, err)
	require.Equal(t, "SELECT my_proc(1)", out)
}

func TestInjectKeysetColumns(t *testing.T) {
	out := injectKeysetColumns("SELECT id FROM t WHERE id = 1", false)
	require.Equal(t, "SELECT id, ctid FROM t WHERE id = 1", out)

	out = injectKeysetColumns("SELECT id FROM t", true)
	require.Equal(t, "SELECT id, ctid, oid FROM t", out)
}

func TestFindTopLevelFromIgnoresNestedAndQuoted(t *testing.T) {
	sql := `SELECT 'from' , (SELECT 1 FROM x) FROM t`
	idx := findTopLevelFrom(sql)
	require.True(t, idx > 0)
	require.Equal(t, "FROM t", sql[idx:])
}

func TestDeclareCursorWithKeyset(t *testing.T) {
	out := declareCursor("SELECT id FROM t", "c1", true, true)
	require.Equal(t, "DECLARE c1 SCROLL CURSOR FOR SELECT id, ctid, oid FROM t", out)
}

func TestDeclareCursorWithoutKeyset(t *testing.T) {
	out := declareCursor("SELECT id FROM t", "c1", false, false)
	require.Equal(t, "DECLARE c1 SCROLL CURSOR FOR SELECT id FROM t", out)
}
