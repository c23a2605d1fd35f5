package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kyleking/askdb/internal/types"
)

// QueryStrings runs a catalog query returning one text column
func QueryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}

	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if s.Valid {
			out = append(out, s.String)
		}
	}

	return out, rows.Err()
}

// QueryColumns runs an information_schema style query returning
// (name, type, is_nullable, default) rows in ordinal order. is_nullable may
// be the text YES/NO or a boolean.
func QueryColumns(ctx context.Context, q Querier, query string, args ...any) (types.Schema, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema := types.Schema{}

	for rows.Next() {
		var (
			name, declared string
			nullable       any
			def            sql.NullString
		)

		if err := rows.Scan(&name, &declared, &nullable, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		col := types.Column{
			Name:         name,
			DeclaredType: declared,
			Nullable:     truthy(nullable),
		}
		if def.Valid {
			col.Default = types.StringPtr(def.String)
		}

		schema = append(schema, col)
	}

	return schema, rows.Err()
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case []byte:
		return truthyText(string(val))
	case string:
		return truthyText(val)
	default:
		return false
	}
}

func truthyText(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "TRUE", "T", "1":
		return true
	default:
		return false
	}
}

// QuoteDouble quotes an identifier with double quotes, doubling embedded ones
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
