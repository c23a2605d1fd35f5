package query

import (
	"regexp"
	"strings"

	"github.com/kyleking/askdb/internal/errors"
)

// forbiddenPattern matches statements that change data, schema or privileges
// by their leading keyword. It is a syntactic prefix check: comments before
// the keyword, stacked statements and vendor-specific writes are not caught.
var forbiddenPattern = regexp.MustCompile(
	`(?i)^\s*(ALTER|CREATE|DELETE|DROP|INSERT|UPDATE|TRUNCATE|GRANT|REVOKE)\b`,
)

// IsForbidden reports whether sql starts with a write or DDL keyword
func IsForbidden(sql string) bool {
	return forbiddenPattern.MatchString(sql)
}

// CheckStatement returns a validation error for statements that must never
// reach the database.
func CheckStatement(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return errors.New(errors.ErrTypeValidation, "SQL query cannot be empty")
	}

	if m := forbiddenPattern.FindStringSubmatch(sql); m != nil {
		return errors.NewValidationError(strings.ToUpper(m[1]))
	}

	return nil
}
