package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeySetAppendAndAt(t *testing.T) {
	k := newKeySet(nil)
	k.append(keyEntry{block: 1, offset: 2})
	k.append(keyEntry{block: 3, offset: 4})

	e, ok := k.at(0)
	require.True(t, ok)
	require.EqualValues(t, 1, e.block)

	_, ok = k.at(5)
	require.False(t, ok)
}

func TestKeySetMarkStatus(t *testing.T) {
	k := newKeySet(nil)
	k.append(keyEntry{})
	k.markDeleted(0)
	e, _ := k.at(0)
	require.Equal(t, rowDeleted, e.status)

	k.markUpdated(0)
	e, _ = k.at(0)
	require.Equal(t, rowUpdated, e.status)
}

func TestKeySetQualifierUsesCtidWithoutOids(t *testing.T) {
	k := newKeySet(&TableCatalog{HasOids: false})
	k.append(keyEntry{block: 7, offset: 3})
	q, err := k.qualifier(0)
	require.NoError(t, err)
	require.Equal(t, `ctid = '(7,3)'`, q)
}

func TestKeySetQualifierAndsOidOntoCtidWhenAvailable(t *testing.T) {
	k := newKeySet(&TableCatalog{HasOids: true})
	k.append(keyEntry{block: 7, offset: 3, oid: 42})
	q, err := k.qualifier(0)
	require.NoError(t, err)
	require.Equal(t, `ctid = '(7,3)' AND "oid" = 42`, q)
}

func TestKeySetQualifierHasOidsButZeroOidOmitsClause(t *testing.T) {
	k := newKeySet(&TableCatalog{HasOids: true})
	k.append(keyEntry{block: 7, offset: 3, oid: 0})
	q, err := k.qualifier(0)
	require.NoError(t, err)
	require.Equal(t, `ctid = '(7,3)'`, q)
}

func TestKeySetQualifierOutOfRange(t *testing.T) {
	k := newKeySet(nil)
	_, err := k.qualifier(0)
	require.Error(t, err)
}

func TestParseCtid(t *testing.T) {
	b, o, ok := parseCtid([]byte("(12,3)"))
	require.True(t, ok)
	require.EqualValues(t, 12, b)
	require.EqualValues(t, 3, o)

	_, _, ok = parseCtid([]byte("garbage"))
	require.False(t, ok)
}
