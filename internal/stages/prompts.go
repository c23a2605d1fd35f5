package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kyleking/askdb/internal/types"
)

const systemPrompt = "You are a careful SQL analyst. Answer with exactly what is asked for and nothing else."

const databaseSelectionPrompt = `Pick the database that should answer the user's question.

Question: %q
Available databases: %s

Rules:
1. If the question names one of the available databases, exactly or approximately, choose it. This overrides everything else.
2. Otherwise choose the database whose name best matches the subject of the question.
3. Avoid administrative or template databases (postgres, template0, template1, information_schema, mysql, sys) unless nothing else fits.

Reply with the database name only, spelled exactly as in the list.`

const tableSelectionPrompt = `Pick the table that should answer the user's question.

Question: %q
Database: %s
Available tables: %s

Rules:
1. If the question names one of the available tables, including singular/plural variants, choose it. This overrides everything else.
2. Otherwise choose the table that holds the entities the question is about.

Reply with the table name only, spelled exactly as in the list.`

const sqlGenerationPrompt = `Write one %s query that answers the question.

Question: %q
Database: %s
Table: %s
Schema (name, type, nullable, default):
%s
Sample rows:
%s

Rules:
- Select the specific columns that answer the question; use * only when every column is wanted.
- Turn every condition in the question into a WHERE predicate. %s
- For totals, averages or counts per group use GROUP BY with aggregate functions.
- When a row must be compared to a value computed per group (for example "below the department average"), compute it in a subquery or CTE and join or filter against it.
- Add a LIMIT (100 unless the question asks for a specific number) unless the question asks for an exact count.
- JSON/JSONB columns: %s
- Use column names exactly as in the schema.
- Produce a single read-only statement (SELECT or WITH). Never INSERT, UPDATE, DELETE, ALTER, CREATE or DROP.

Reply with the raw SQL only: no explanation, no markdown.`

const repairPrompt = `A %s query failed. Write a corrected query that still answers the question.

Question: %q
Database: %s
Table: %s
Failed query:
%s
Error:
%s
Schema (authoritative):
%s
Sample rows:
%s

Diagnose the failure first:
- unknown column or table: use the names from the schema exactly
- syntax error: simplify the expression
- type mismatch: cast or change the operator
Prefer a simpler query that runs over a closer one that might fail again. The result must be a single read-only statement.

Reply with the raw SQL only: no explanation, no markdown.`

const responsePrompt = `Answer the user's question in plain language using the query results below.

Question: %q
SQL used (context only, do not show it to the user): %s
Number of rows: %d
Rows:
%s

Guidelines:
- Start with what was found, with concrete numbers and names from the rows.
- If there are no rows, say plainly that nothing matched and suggest why; never invent data.
- Keep it short and conversational. Do not mention SQL, tables or queries.`

// caseInsensitiveHint tells the model how to compare text on the dialect
func caseInsensitiveHint(dialect string) string {
	if dialect == "postgres" || dialect == "duckdb" {
		return "Compare text case-insensitively with ILIKE."
	}

	return "Compare text case-insensitively with LOWER(column) LIKE LOWER('...')."
}

func jsonHint(dialect string) string {
	switch dialect {
	case "postgres":
		return "use -> to navigate and ->> to extract text (cast the extracted text when comparing numbers); use @> for containment."
	case "mysql":
		return "use JSON_EXTRACT(col, '$.key') or col->>'$.key'."
	case "sqlite":
		return "use json_extract(col, '$.key')."
	case "duckdb":
		return "use col->>'$.key' or json_extract_string(col, '$.key')."
	case "snowflake":
		return "use col:key::string style paths on VARIANT columns."
	default:
		return "use the dialect's JSON extraction functions."
	}
}

func dialectLabel(dialect string) string {
	switch dialect {
	case "postgres":
		return "PostgreSQL"
	case "mysql":
		return "MySQL"
	case "sqlite":
		return "SQLite"
	case "duckdb":
		return "DuckDB"
	case "snowflake":
		return "Snowflake"
	default:
		return "SQL"
	}
}

func renderList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// renderJSON indents v for the prompt; encoding failures fall back to %v
func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(data)
}

func renderSchema(schema types.Schema) string {
	if len(schema) == 0 {
		return "(unknown)"
	}

	return renderJSON(schema)
}

func renderSample(sample []types.Record) string {
	if len(sample) == 0 {
		return "(no rows)"
	}

	return renderJSON(sample)
}
