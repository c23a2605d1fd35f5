// Package testutil provides fixtures, doubles and helpers shared by tests
package testutil

import "time"

const (
	// ShortTestTimeout bounds database connects in tests
	ShortTestTimeout = 5 * time.Second

	// TestTimeout bounds a whole pipeline run in tests
	TestTimeout = 30 * time.Second
)

// Names used across scenario tests
const (
	MainDB   = "main_db"
	TestDB   = "test_db"
	Question = "Show me users in Lyon"
)
