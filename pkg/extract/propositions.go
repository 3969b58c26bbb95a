package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexgraph/lexgraph/pkg/ai"
)

type propositionResponse struct {
	Propositions []string `json:"propositions" jsonschema_description:"Self-contained propositions in passage order"`
}

// PropositionExtractor rewrites chunk text into decontextualized
// propositions ahead of structure extraction.
type PropositionExtractor struct {
	client ai.Client
}

func NewPropositionExtractor(client ai.Client) *PropositionExtractor {
	return &PropositionExtractor{client: client}
}

// Extract returns the propositions for a chunk. Blank propositions are
// dropped; an empty result is valid for content-free chunks.
func (e *PropositionExtractor) Extract(ctx context.Context, chunkText string) ([]string, error) {
	var res propositionResponse
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"propositions",
		"Self-contained propositions extracted from a passage",
		chunkText,
		&res,
		ai.WithSystemPrompts(ai.PropositionPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract propositions: %w", err)
	}

	propositions := make([]string, 0, len(res.Propositions))
	for _, p := range res.Propositions {
		p = strings.TrimSpace(p)
		if p != "" {
			propositions = append(propositions, p)
		}
	}
	return propositions, nil
}
