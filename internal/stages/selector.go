// Package stages holds the model-driven decisions of the pipeline: choosing
// a database and table, writing SQL, repairing it and narrating results.
// Every stage accepts a nil llm.Service and then answers deterministically.
package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/logging"
)

// Kind is what a selection chooses between
type Kind string

const (
	KindDatabase Kind = "database"
	KindTable    Kind = "table"
)

// DefaultTable is returned when there is no table to choose from
const DefaultTable = "unknown"

// Selector picks one candidate for a question
type Selector struct {
	model           llm.Service
	defaultDatabase string
}

// NewSelector creates a selector. defaultDatabase is returned when no
// database candidates exist.
func NewSelector(model llm.Service, defaultDatabase string) *Selector {
	if defaultDatabase == "" {
		defaultDatabase = "postgres"
	}

	return &Selector{model: model, defaultDatabase: defaultDatabase}
}

// Select returns a member of candidates, or the kind's default when
// candidates is empty.
func (s *Selector) Select(ctx context.Context, question string, candidates []string, kind Kind) string {
	return s.choose(ctx, question, "", candidates, kind)
}

// SelectTable is Select for tables, with the owning database in the prompt
func (s *Selector) SelectTable(ctx context.Context, question, database string, tables []string) string {
	return s.choose(ctx, question, database, tables, KindTable)
}

func (s *Selector) choose(ctx context.Context, question, database string, candidates []string, kind Kind) string {
	switch {
	case len(candidates) == 0:
		return s.fallback(kind)
	case len(candidates) == 1 || s.model == nil:
		return candidates[0]
	}

	log := logging.WithFields(map[string]any{
		"kind":       string(kind),
		"candidates": len(candidates),
	})

	resp, err := s.model.Complete(ctx, llm.CompletionRequest{
		System:    systemPrompt,
		Prompt:    s.prompt(question, database, candidates, kind),
		MaxTokens: 64,
	})
	if err != nil {
		log.WithError(err).Warn("Selection model call failed; using first candidate")
		return candidates[0]
	}

	choice := strings.TrimSpace(resp.Text)
	for _, c := range candidates {
		if c == choice {
			log.WithField("selected", choice).Debug("Candidate selected")
			return c
		}
	}

	log.WithError(errors.Newf(errors.ErrTypeSelection, "model chose %q, not one of the candidates", choice)).
		Warnf("Invalid %s selection; using %s", kind, candidates[0])

	return candidates[0]
}

func (s *Selector) fallback(kind Kind) string {
	if kind == KindDatabase {
		return s.defaultDatabase
	}

	return DefaultTable
}

func (s *Selector) prompt(question, database string, candidates []string, kind Kind) string {
	if kind == KindDatabase {
		return fmt.Sprintf(databaseSelectionPrompt, question, renderList(candidates))
	}

	if database == "" {
		database = "(current)"
	}

	return fmt.Sprintf(tableSelectionPrompt, question, database, renderList(candidates))
}
