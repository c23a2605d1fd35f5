package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kyleking/askdb/internal/pipeline"
	"github.com/kyleking/askdb/internal/tools"
	"github.com/kyleking/askdb/internal/types"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

// ParseFormat returns the format named by s, defaulting to table
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(FormatJSON)) {
		return FormatJSON
	}

	return FormatTable
}

const (
	nullValue   = "NULL"
	maxCellSize = 60
)

// Formatter renders catalog and query output for the terminal
type Formatter struct {
	now func() time.Time
}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// FormatResults renders a result set. A single scalar prints on its own.
func (f *Formatter) FormatResults(rs *types.ResultSet, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(rs)
	}

	if rs.Empty() {
		return "(0 rows)", nil
	}

	if rs.IsScalar() {
		var buf bytes.Buffer

		for _, row := range rs.Rows() {
			buf.WriteString(f.formatValue(row.Scalar))
			buf.WriteByte('\n')
		}

		fmt.Fprintf(&buf, "(%d %s)", rs.Len(), plural(rs.Len(), "row", "rows"))

		return buf.String(), nil
	}

	return f.formatTable(rs.Columns, rs.Values), nil
}

// FormatSchema renders a table description
func (f *Formatter) FormatSchema(schema types.Schema, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(schema)
	}

	if len(schema) == 0 {
		return "(no columns)", nil
	}

	var buf bytes.Buffer

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttype\tnullable\tdefault")
	fmt.Fprintln(tw, "------\t----\t--------\t-------")

	for _, col := range schema {
		def := "-"
		if col.Default != nil {
			def = *col.Default
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", col.Name, col.DeclaredType, yesNo(col.Nullable), def)
	}

	_ = tw.Flush()

	return strings.TrimRight(buf.String(), "\n"), nil
}

// FormatRecords renders sample rows
func (f *Formatter) FormatRecords(records []types.Record, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(records)
	}

	if len(records) == 0 {
		return "(0 rows)", nil
	}

	// Samples always print as a table, even with a single column
	columns := make([]string, len(records[0]))
	for i, field := range records[0] {
		columns[i] = field.Name
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = make([]any, len(columns))
		for j, name := range columns {
			rows[i][j], _ = rec.Get(name)
		}
	}

	return f.formatTable(columns, rows), nil
}

func (f *Formatter) formatTable(columns []string, rows [][]any) string {
	var buf bytes.Buffer

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	fmt.Fprintln(tw, strings.Join(underline(columns), "\t"))

	for _, values := range rows {
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = f.formatValue(v)
		}

		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	_ = tw.Flush()

	fmt.Fprintf(&buf, "(%d %s)", len(rows), plural(len(rows), "row", "rows"))

	return buf.String()
}

// FormatList renders names one per line
func (f *Formatter) FormatList(names []string, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(names)
	}

	if len(names) == 0 {
		return "(none)", nil
	}

	return strings.Join(names, "\n"), nil
}

// FormatStep renders a one-line progress entry for a step envelope
func (f *Formatter) FormatStep(env pipeline.Envelope) string {
	mark := "✓"

	switch env.Status {
	case pipeline.StatusSuccessAfterRetry:
		mark = "↻"
	case pipeline.StatusError:
		mark = "✗"
	}

	return fmt.Sprintf("%s [%d/%d] %s", mark, env.Step, len(pipeline.Actions), env.Message)
}

// FormatAnswer renders the outcome of a pipeline run
func (f *Formatter) FormatAnswer(result *pipeline.Result, format OutputFormat, showSQL bool) (string, error) {
	if format == FormatJSON {
		return f.toJSON(result)
	}

	answer := result.Answer()

	if !showSQL || result.State.SQLQuery == "" {
		return answer, nil
	}

	lines := []string{answer, "", "SQL: " + result.State.ExecutedSQL()}
	if result.State.CorrectedSQL != "" {
		lines = append(lines, "Original SQL: "+result.State.SQLQuery)
	}

	return strings.Join(lines, "\n"), nil
}

// FormatReport renders a connection report
func (f *Formatter) FormatReport(report tools.ConnectionReport, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(report)
	}

	lines := []string{
		"Status: " + report.Status,
		"Driver: " + report.Driver,
		fmt.Sprintf("Databases: %d", report.DatabasesCount),
	}

	if len(report.Databases) > 0 {
		lines = append(lines, "  "+strings.Join(report.Databases, ", "))
	}

	if report.SampleDatabase != "" {
		tables := strings.Join(report.SampleTables, ", ")
		if tables == "" {
			tables = "-"
		}

		lines = append(lines, fmt.Sprintf("Tables in %s: %d (%s)", report.SampleDatabase, report.SampleTablesCount, tables))
	}

	llm := "not configured (deterministic fallbacks)"
	if report.LLMAvailable {
		llm = "configured"
	}

	lines = append(lines, "Model: "+llm)

	if report.Error != "" {
		lines = append(lines, "Error: "+report.Error)
	}

	lines = append(lines, "Checked: "+f.humanizeAge(report.Timestamp))

	return strings.Join(lines, "\n"), nil
}

func (f *Formatter) toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal output: %w", err)
	}

	return string(data), nil
}

// formatValue prints a cell, truncating long text
func (f *Formatter) formatValue(v any) string {
	if v == nil {
		return nullValue
	}

	var s string

	switch val := v.(type) {
	case string:
		s = val
	case time.Time:
		s = val.Format(time.RFC3339)
	case float64:
		s = fmt.Sprintf("%g", val)
	default:
		s = fmt.Sprintf("%v", val)
	}

	s = strings.ReplaceAll(s, "\n", " ")

	if r := []rune(s); len(r) > maxCellSize {
		s = string(r[:maxCellSize-3]) + "..."
	}

	return s
}

// humanizeAge converts a time to a short relative string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "?"
	}

	d := f.now().Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02 15:04:05")
	}
}

func underline(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.Repeat("-", max(len([]rune(name)), 1))
	}

	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
