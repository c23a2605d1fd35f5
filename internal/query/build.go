package query

import (
	"fmt"
	"strings"
)

// Quoter quotes an identifier for the active dialect
type Quoter interface {
	QuoteIdent(name string) string
}

// SelectAll builds the fallback statement used for samples and degraded SQL
func SelectAll(q Quoter, table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", q.QuoteIdent(table), limit)
}

var fenceLanguages = map[string]bool{
	"": true, "sql": true, "postgresql": true, "postgres": true, "pgsql": true,
	"mysql": true, "sqlite": true, "duckdb": true, "snowflake": true,
}

// Clean strips markdown code fences and a single trailing semicolon from
// model output.
func Clean(sqlText string) string {
	s := strings.TrimSpace(sqlText)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			if fenceLanguages[strings.ToLower(strings.TrimSpace(s[:nl]))] {
				s = s[nl+1:]
			}
		}
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")

	return strings.TrimSpace(s)
}
