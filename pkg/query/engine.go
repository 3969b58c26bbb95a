// Package query turns retrieval results into grounded answers.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/retrieval"
)

// NoDataAnswer is returned when retrieval finds nothing to ground an answer
// on. Answering from the model's own knowledge instead would defeat the
// point of the graph.
const NoDataAnswer = "I could not find any information about this in the indexed documents."

// Answer is a generated response together with the retrieval results that
// grounded it.
type Answer struct {
	Text    string
	Results []retrieval.Result
}

// Engine combines a retriever with answer generation.
type Engine struct {
	client    ai.Client
	retriever retrieval.Retriever
	model     string
}

type NewEngineParams struct {
	Client    ai.Client
	Retriever retrieval.Retriever
	// Model overrides the client's default generation model.
	Model string
}

func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("query engine requires an ai client")
	}
	if params.Retriever == nil {
		return nil, fmt.Errorf("query engine requires a retriever")
	}
	return &Engine{
		client:    params.Client,
		retriever: params.Retriever,
		model:     params.Model,
	}, nil
}

// Ask retrieves context for the question and generates an answer grounded in
// it.
func (e *Engine) Ask(ctx context.Context, question string, params retrieval.Params) (Answer, error) {
	params.Query = question
	results, err := e.retriever.Retrieve(ctx, params)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(results) == 0 {
		logger.Info("[Query] no context found", "question_len", len(question))
		return Answer{Text: NoDataAnswer}, nil
	}

	prompt := fmt.Sprintf(ai.AnswerPrompt, FormatResults(results), question)

	opts := []ai.GenerateOption{ai.WithSystemPrompts(prompt)}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	text, err := e.client.GenerateCompletion(ctx, question, opts...)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return Answer{Text: text, Results: results}, nil
}

// FormatResults renders retrieval results as the search results block of the
// answer prompt, one line per result with type and provenance.
func FormatResults(results []retrieval.Result) string {
	var sb strings.Builder
	for _, result := range results {
		text := resultText(result.Node)
		if text == "" {
			continue
		}
		sb.WriteString("- [")
		sb.WriteString(string(result.Node.Type))
		sb.WriteString("] ")
		sb.WriteString(text)
		if result.SourceID != "" {
			sb.WriteString(" (source: ")
			sb.WriteString(result.SourceID)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resultText(node model.Node) string {
	switch node.Type {
	case model.NodeStatement, model.NodeChunk:
		text, _ := node.Properties["text"].(string)
		return text
	case model.NodeTopic:
		summary, _ := node.Properties["summary"].(string)
		if summary != "" {
			return summary
		}
		label, _ := node.Properties["label"].(string)
		return label
	case model.NodeFact:
		subject, _ := node.Properties["subject"].(string)
		predicate, _ := node.Properties["predicate"].(string)
		object, _ := node.Properties["object"].(string)
		if subject == "" || predicate == "" || object == "" {
			return ""
		}
		return fmt.Sprintf("%s %s %s", subject, predicate, object)
	case model.NodeEntity:
		name, _ := node.Properties["name"].(string)
		return name
	default:
		return ""
	}
}
