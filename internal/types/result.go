package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a Record
type Field struct {
	Name  string
	Value any
}

// Record is a row keyed by column name. Field order follows the query's
// column order and is preserved when encoded as JSON.
type Record []Field

// Get returns the value of the first field named name
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// Map flattens the record; later duplicates of a column name win
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}

	return m
}

// MarshalJSON encodes the record as an object with keys in column order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", f.Name, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// RowKind tags the variant held by a Row
type RowKind int

const (
	RowRecord RowKind = iota
	RowScalar
)

// Row is a normalized result row: either a bare scalar (a single
// aggregate value) or a Record.
type Row struct {
	Kind   RowKind
	Scalar any
	Record Record
}

// MarshalJSON encodes scalars as bare values and records as objects
func (r Row) MarshalJSON() ([]byte, error) {
	if r.Kind == RowScalar {
		return json.Marshal(r.Scalar)
	}

	return r.Record.MarshalJSON()
}

// ResultSet is the bounded output of one query execution
type ResultSet struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}

	return len(rs.Values)
}

// Empty reports whether the result has no rows
func (rs *ResultSet) Empty() bool {
	return rs.Len() == 0
}

// IsScalar reports whether the result is a single value: one column and
// one row. The decision is made on shape only, never on column labels.
func (rs *ResultSet) IsScalar() bool {
	return rs != nil && len(rs.Columns) == 1 && len(rs.Values) == 1
}

// Rows returns the normalized rows
func (rs *ResultSet) Rows() []Row {
	rows := make([]Row, 0, rs.Len())
	if rs == nil {
		return rows
	}

	scalar := rs.IsScalar()
	for _, values := range rs.Values {
		if scalar {
			rows = append(rows, Row{Kind: RowScalar, Scalar: values[0]})
			continue
		}

		rows = append(rows, Row{Kind: RowRecord, Record: rs.record(values)})
	}

	return rows
}

// Records returns every row as a Record regardless of arity
func (rs *ResultSet) Records() []Record {
	records := make([]Record, 0, rs.Len())
	if rs == nil {
		return records
	}

	for _, values := range rs.Values {
		records = append(records, rs.record(values))
	}

	return records
}

func (rs *ResultSet) record(values []any) Record {
	record := make(Record, len(rs.Columns))
	for i, name := range rs.Columns {
		record[i] = Field{Name: name, Value: values[i]}
	}

	return record
}

// MarshalJSON encodes the result as a JSON array of normalized rows
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Rows())
}

// NormalizeValue converts driver-specific values into JSON-friendly ones
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}

// UnmarshalJSON decodes an object into a Record, keeping key order
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object, got %v", tok)
	}

	record := Record{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode column %q: %w", key, err)
		}

		record = append(record, Field{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = record

	return nil
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON: an array of
// objects, or a one-element array holding a bare value.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := ResultSet{}
	firstIsRecord := false

	for i, item := range items {
		item = bytes.TrimSpace(item)
		isRecord := len(item) > 0 && item[0] == '{'

		if i == 0 {
			firstIsRecord = isRecord
		} else if isRecord != firstIsRecord {
			return fmt.Errorf("row %d: mixed record and scalar rows", i)
		}

		if !isRecord {
			if len(items) > 1 {
				return fmt.Errorf("row %d: bare values are only valid for a single-value result", i)
			}

			var value any
			if err := json.Unmarshal(item, &value); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}

			if i == 0 {
				out.Columns = []string{"value"}
			}

			out.Values = append(out.Values, []any{value})

			continue
		}

		var record Record
		if err := record.UnmarshalJSON(item); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}

		if i == 0 {
			for _, f := range record {
				out.Columns = append(out.Columns, f.Name)
			}
		}

		values := make([]any, len(out.Columns))
		for j, name := range out.Columns {
			values[j], _ = record.Get(name)
		}

		out.Values = append(out.Values, values)
	}

	*rs = out

	return nil
}
