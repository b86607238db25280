package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleSelect(t *testing.T) {
	res := Parse(`SELECT id, s FROM t`)
	require.Equal(t, KindSelect, res.Kind)
	require.Len(t, res.Fields, 2)
	require.Equal(t, "id", res.Fields[0].Name)
	require.Equal(t, "s", res.Fields[1].Name)
	require.Len(t, res.Tables, 1)
	require.Equal(t, "t", res.Tables[0].Name)
	require.True(t, res.Updatable)
}

func TestParseAliasAndQualifiedColumn(t *testing.T) {
	res := Parse(`SELECT t.id AS identifier FROM accounts AS t`)
	require.Len(t, res.Fields, 1)
	require.Equal(t, "id", res.Fields[0].Name)
	require.Equal(t, "t", res.Fields[0].TableRef)
	require.Equal(t, "identifier", res.Fields[0].Alias)
	require.Len(t, res.Tables, 1)
	require.Equal(t, "t", res.Tables[0].Alias)
	require.False(t, res.Ambiguous)
}

func TestParseAggregateDisablesUpdatable(t *testing.T) {
	res := Parse(`SELECT count(*) FROM t`)
	require.True(t, res.HasAggregate)
	require.False(t, res.Updatable)
}

func TestParseForUpdateDisablesUpdatable(t *testing.T) {
	res := Parse(`SELECT id FROM t WHERE id = ? FOR UPDATE`)
	require.True(t, res.ForUpdate)
	require.False(t, res.Updatable)
}

func TestParseSelectIntoReclassifiesCreate(t *testing.T) {
	res := Parse(`SELECT id INTO newtable FROM t`)
	require.Equal(t, KindCreate, res.Kind)
}

func TestParseQuotedStringLiteralNotScannedForPlaceholders(t *testing.T) {
	res := Parse(`SELECT ?::int, 'it''s ?', "?col", ?::text`)
	require.Equal(t, KindSelect, res.Kind)
}

func TestParseDollarQuotedBodyIgnored(t *testing.T) {
	res := Parse(`SELECT $tag$has ? inside$tag$ FROM t`)
	require.Equal(t, KindSelect, res.Kind)
	require.Len(t, res.Tables, 1)
}

func TestParseJoin(t *testing.T) {
	res := Parse(`SELECT a.id FROM a INNER JOIN b ON a.id = b.id`)
	require.Len(t, res.Tables, 2)
	require.False(t, res.Updatable) // more than one table
}
