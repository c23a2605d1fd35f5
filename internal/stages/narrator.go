package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/types"
)

// NoResultsMessage is the deterministic answer for an empty result set
const NoResultsMessage = "I found no results matching your question."

// Narrator phrases query results as an answer to the question
type Narrator struct {
	model llm.Service
}

// NewNarrator creates a narrator
func NewNarrator(model llm.Service) *Narrator {
	return &Narrator{model: model}
}

// Narrate answers question from results. sql is given to the model as
// context and never quoted back.
func (n *Narrator) Narrate(ctx context.Context, question, sql string, results *types.ResultSet) string {
	if n.model == nil {
		return CountMessage(results.Len())
	}

	prompt := fmt.Sprintf(responsePrompt, question, sql, results.Len(), renderJSON(results))

	resp, err := n.model.Complete(ctx, llm.CompletionRequest{System: systemPrompt, Prompt: prompt})
	if err != nil {
		logging.WithError(err).Warn("Response formatting failed; using template")
		return CountMessage(results.Len())
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return CountMessage(results.Len())
	}

	return text
}

// CountMessage is the templated answer used without a model
func CountMessage(count int) string {
	if count == 0 {
		return NoResultsMessage
	}

	return fmt.Sprintf("I found %d result(s) for your question.", count)
}
