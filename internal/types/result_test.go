package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsScalarByShape(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{name: "count label", columns: []string{"count"}},
		{name: "arbitrary label", columns: []string{"total_users"}},
		{name: "label that looks like a column", columns: []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &ResultSet{Columns: tt.columns, Values: [][]any{{int64(42)}}}

			rows := rs.Rows()
			require.Len(t, rows, 1)
			assert.Equal(t, RowScalar, rows[0].Kind)
			assert.Equal(t, int64(42), rows[0].Scalar)
		})
	}
}

func TestRowsSingleColumnManyRowsAreRecords(t *testing.T) {
	rs := &ResultSet{Columns: []string{"name"}, Values: [][]any{{"Ada"}, {"Grace"}}}

	assert.False(t, rs.IsScalar())

	rows := rs.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, RowRecord, rows[0].Kind)
	assert.Equal(t, Record{{Name: "name", Value: "Grace"}}, rows[1].Record)

	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Ada"},{"name":"Grace"}]`, string(data))
}

func TestRowsRecordForMultipleColumns(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"id", "city"},
		Values:  [][]any{{int64(1), "Lyon"}, {int64(2), "Paris"}},
	}

	rows := rs.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, RowRecord, rows[0].Kind)

	city, ok := rows[1].Record.Get("city")
	require.True(t, ok)
	assert.Equal(t, "Paris", city)

	_, ok = rows[1].Record.Get("missing")
	assert.False(t, ok)
}

func TestRecordsIgnoreArity(t *testing.T) {
	rs := &ResultSet{Columns: []string{"name"}, Values: [][]any{{"alice"}}}

	records := rs.Records()
	require.Len(t, records, 1)
	assert.Equal(t, Record{{Name: "name", Value: "alice"}}, records[0])
}

func TestResultSetJSONKeepsColumnOrder(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"zeta", "alpha", "mid"},
		Values:  [][]any{{1, "a", nil}},
	}

	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"zeta":1,"alpha":"a","mid":null}]`, string(data))
	assert.Equal(t, `[{"zeta":1,"alpha":"a","mid":null}]`, string(data))

	scalar := &ResultSet{Columns: []string{"count"}, Values: [][]any{{7}}}
	data, err = json.Marshal(scalar)
	require.NoError(t, err)
	assert.Equal(t, `[7]`, string(data))
}

func TestEmptyAndNilResultSets(t *testing.T) {
	var nilSet *ResultSet
	assert.Equal(t, 0, nilSet.Len())
	assert.True(t, nilSet.Empty())
	assert.Empty(t, nilSet.Rows())

	empty := &ResultSet{}
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "12.50", NormalizeValue([]byte("12.50")))
	assert.Equal(t, int64(3), NormalizeValue(int64(3)))
	assert.Nil(t, NormalizeValue(nil))
}

func TestSchemaHelpers(t *testing.T) {
	schema := Schema{
		{Name: "id", DeclaredType: "integer"},
		{Name: "name", DeclaredType: "text", Nullable: true, Default: StringPtr("NULL")},
	}

	assert.Equal(t, []string{"id", "name"}, schema.Names())

	col, ok := schema.Lookup("name")
	require.True(t, ok)
	require.NotNil(t, col.Default)
	assert.Equal(t, "NULL", *col.Default)

	_, ok = schema.Lookup("email")
	assert.False(t, ok)
}

func TestResultSetUnmarshalRecords(t *testing.T) {
	var rs ResultSet
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Ada","city":"Lyon"},{"name":"Grace","city":"Lyon","extra":1}]`), &rs))

	assert.Equal(t, []string{"name", "city"}, rs.Columns)
	assert.Equal(t, [][]any{{"Ada", "Lyon"}, {"Grace", "Lyon"}}, rs.Values)
}

func TestResultSetUnmarshalScalars(t *testing.T) {
	var rs ResultSet
	require.NoError(t, json.Unmarshal([]byte(`[3]`), &rs))

	assert.True(t, rs.IsScalar())
	assert.Equal(t, 1, rs.Len())

	data, err := json.Marshal(&rs)
	require.NoError(t, err)
	assert.Equal(t, `[3]`, string(data))
}

func TestResultSetUnmarshalRejectsMixedRows(t *testing.T) {
	var rs ResultSet
	assert.Error(t, json.Unmarshal([]byte(`[{"a":1},2]`), &rs))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rs))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &rs))
}

func TestRecordUnmarshalKeepsOrder(t *testing.T) {
	var record Record
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":"a"}`), &record))

	require.Len(t, record, 2)
	assert.Equal(t, "zeta", record[0].Name)
	assert.Equal(t, json.Number("1"), record[0].Value)
	assert.Equal(t, "alpha", record[1].Name)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &record))
}
