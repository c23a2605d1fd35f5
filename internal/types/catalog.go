package types

// Column describes one column of a table as reported by the catalog
type Column struct {
	Name         string  `json:"name"`
	DeclaredType string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default"` // nil when the column has no default
}

// Schema is the ordered column list of a table, in physical ordinal order
type Schema []Column

// Names returns the column names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}

	return names
}

// Lookup finds a column by exact name
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

// StringPtr returns a pointer to s, for building column defaults
func StringPtr(s string) *string {
	return &s
}
