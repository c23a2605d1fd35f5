package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/errors"
)

func TestIsForbidden(t *testing.T) {
	tests := []struct {
		sql       string
		forbidden bool
	}{
		{"DROP TABLE users;", true},
		{"drop table users", true},
		{"   \n\tDELETE FROM users WHERE id = 1", true},
		{"Insert into users values (1)", true},
		{"UPDATE users SET name = 'x'", true},
		{"ALTER TABLE users ADD COLUMN age int", true},
		{"CREATE TABLE t (id int)", true},
		{"TRUNCATE users", true},
		{"GRANT SELECT ON users TO public", true},
		{"revoke all on users from public", true},
		{"SELECT * FROM users", false},
		{"  select count(*) from users", false},
		{"WITH recent AS (SELECT 1) SELECT * FROM recent", false},
		{"EXPLAIN SELECT * FROM users", false},
		{"SELECT * FROM dropped_items", false},
		{"DROPPED", false},
		{"SELECT 1; DROP TABLE users", false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.forbidden, IsForbidden(tt.sql))
		})
	}
}

func TestCheckStatement(t *testing.T) {
	err := CheckStatement("drop table users;")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "DROP statements are not allowed")

	err = CheckStatement("   ")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	assert.NoError(t, CheckStatement("SELECT 1"))
}
