package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEffectiveRowsetSizeDefaultsToOne(t *testing.T) {
	s := &Statement{}
	require.Equal(t, 1, s.effectiveRowsetSize())

	s.Options.RowsetSize = 10
	require.Equal(t, 10, s.effectiveRowsetSize())
}

func TestCacheSizeClampsToMax(t *testing.T) {
	s := &Statement{}
	s.Options.RowsetSize = 1000
	require.Equal(t, maxCacheRows, s.cacheSize())

	s.Options.RowsetSize = 2
	require.Equal(t, 2*defaultCacheMultiplier, s.cacheSize())
}

func TestComputeTargetRowsetStartNext(t *testing.T) {
	s := &Statement{rowsetStart: 10, lastFetchCount: 5}
	require.Equal(t, 15, s.computeTargetRowsetStart(FetchNext, 0, nil))
}

func TestComputeTargetRowsetStartPriorClampsToZero(t *testing.T) {
	s := &Statement{rowsetStart: 1}
	s.Options.RowsetSize = 5
	require.Equal(t, 0, s.computeTargetRowsetStart(FetchPrior, 0, nil))
}

func TestComputeTargetRowsetStartAbsoluteNegativeClamps(t *testing.T) {
	s := &Statement{}
	require.Equal(t, 0, s.computeTargetRowsetStart(FetchAbsolute, -5, nil))
	require.Equal(t, 7, s.computeTargetRowsetStart(FetchAbsolute, 7, nil))
}

func TestComputeTargetRowsetStartRelative(t *testing.T) {
	s := &Statement{rowsetStart: 10}
	require.Equal(t, 13, s.computeTargetRowsetStart(FetchRelative, 3, nil))
	require.Equal(t, 0, s.computeTargetRowsetStart(FetchRelative, -100, nil))
}

func TestComputeTargetRowsetStartFirstAndLast(t *testing.T) {
	s := &Statement{rowsetStart: 10}
	require.Equal(t, 0, s.computeTargetRowsetStart(FetchFirst, 0, nil))
	require.Equal(t, -1, s.computeTargetRowsetStart(FetchLast, 0, nil))
}

func TestCacheCoversEmptyCache(t *testing.T) {
	s := &Statement{}
	r := &Result{base: -1}
	require.False(t, s.cacheCovers(r, 0, 1))
}

func TestCacheCoversWithinWindow(t *testing.T) {
	s := &Statement{}
	r := &Result{base: 5, rows: make([][]Field, 10)}
	require.True(t, s.cacheCovers(r, 6, 3))
	require.False(t, s.cacheCovers(r, 2, 3))
	require.False(t, s.cacheCovers(r, 14, 3))
}

func TestCurrentServerPos(t *testing.T) {
	s := &Statement{}
	require.Equal(t, 0, s.currentServerPos(&Result{base: -1}))
	require.Equal(t, 8, s.currentServerPos(&Result{base: 5, rows: make([][]Field, 3)}))
}

func TestSplitKeysetColumnsStripsCtid(t *testing.T) {
	cols := []ColumnInfo{{Name: "id"}, {Name: "ctid"}}
	rows := [][]Field{{{Bytes: []byte("1")}, {Bytes: []byte("(0,1)")}}}

	newRows, newCols := splitKeysetColumns(rows, cols, true, false)
	require.Len(t, newCols, 1)
	require.Equal(t, "id", newCols[0].Name)
	require.Len(t, newRows[0], 1)
}

func TestSplitKeysetColumnsNoKeysetIsNoop(t *testing.T) {
	cols := []ColumnInfo{{Name: "id"}}
	rows := [][]Field{{{Bytes: []byte("1")}}}
	newRows, newCols := splitKeysetColumns(rows, cols, false, false)
	require.Equal(t, cols, newCols)
	require.Equal(t, rows, newRows)
}

func TestAppendKeyEntryFromRawParsesCtid(t *testing.T) {
	ks := newKeySet(nil)
	row := []Field{{Bytes: []byte("v")}, {Bytes: []byte("(2,9)")}}
	appendKeyEntryFromRaw(ks, row, false)
	e, ok := ks.at(0)
	require.True(t, ok)
	require.EqualValues(t, 2, e.block)
	require.EqualValues(t, 9, e.offset)
}

func TestCloneFieldsIsIndependentSlice(t *testing.T) {
	src := []Field{{Bytes: []byte("a")}, {Bytes: []byte("b")}}
	dup := cloneFields(src)
	require.Equal(t, src, dup)

	dup[0] = Field{Bytes: []byte("z")}
	require.Equal(t, "a", string(src[0].Bytes))
}
