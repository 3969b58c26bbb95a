package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/model"
)

// StructureResponse is the wire shape of a structure extraction. The batch
// adapter parses provider output into the same type, so synchronous and
// asynchronous extraction share one mapping into the graph model.
type StructureResponse struct {
	Topics []StructureTopic `json:"topics" jsonschema_description:"Topics covered by the passage"`
}

type StructureTopic struct {
	Label      string               `json:"label" jsonschema_description:"Short noun-phrase topic label"`
	Summary    string               `json:"summary" jsonschema_description:"One-sentence topic summary"`
	Statements []StructureStatement `json:"statements" jsonschema_description:"Statements belonging to this topic"`
}

type StructureStatement struct {
	Text  string          `json:"text" jsonschema_description:"Self-contained claim from the passage"`
	Facts []StructureFact `json:"facts" jsonschema_description:"Subject-predicate-object triples grounded in the statement"`
}

type StructureFact struct {
	Subject      string `json:"subject" jsonschema_description:"Name of the subject entity"`
	SubjectClass string `json:"subject_classification" jsonschema_description:"Classification of the subject entity"`
	Predicate    string `json:"predicate" jsonschema_description:"Short verb phrase relating subject and object"`
	Object       string `json:"object" jsonschema_description:"Name of the object entity"`
	ObjectClass  string `json:"object_classification" jsonschema_description:"Classification of the object entity"`
}

// StructureExtractor turns chunk text (or its propositions) into the
// topic/statement/fact hierarchy.
type StructureExtractor struct {
	client          ai.Client
	classifications []string
}

type NewStructureExtractorParams struct {
	Client ai.Client
	// Classifications offered to the model for entity typing. Empty uses
	// the default set.
	Classifications []string
}

// DefaultEntityClassifications is the entity typing set offered when the
// caller configures none.
var DefaultEntityClassifications = []string{
	"person", "organization", "location", "event", "product",
	"concept", "date", "quantity",
}

func NewStructureExtractor(params NewStructureExtractorParams) *StructureExtractor {
	classifications := params.Classifications
	if len(classifications) == 0 {
		classifications = DefaultEntityClassifications
	}
	return &StructureExtractor{
		client:          params.Client,
		classifications: classifications,
	}
}

// Prompt returns the system prompt with the classification set applied. The
// batch adapter uses it to build batch input records with the same
// instructions the synchronous path sends.
func (e *StructureExtractor) Prompt() string {
	classes := strings.Join(e.classifications, ", ")
	return fmt.Sprintf(ai.ExtractPrompt, classes, classes)
}

// Extract runs structure extraction over the given passage text.
func (e *StructureExtractor) Extract(ctx context.Context, passage string) (*StructureResponse, error) {
	var res StructureResponse
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"structure",
		"Topics, statements, facts and entities extracted from a passage",
		passage,
		&res,
		ai.WithSystemPrompts(e.Prompt()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract structure: %w", err)
	}
	return &res, nil
}

// BuildExtraction maps a structure response onto the graph model, deriving
// every id from content through the tenant-scoped generator and deduplicating
// entities within the chunk. Topics without a label and statements without
// text are dropped rather than failing the chunk.
func BuildExtraction(
	idgen *model.IDGenerator,
	source model.Source,
	chunk model.Chunk,
	propositions []string,
	res *StructureResponse,
) model.ExtractedChunk {
	extracted := model.ExtractedChunk{
		Source:       source,
		Chunk:        chunk,
		Propositions: propositions,
	}

	var entities []model.Entity
	seenStatements := make(map[string]bool)

	for _, topic := range res.Topics {
		label := strings.TrimSpace(topic.Label)
		if label == "" {
			continue
		}
		topicID := idgen.NodeID("topic", chunk.ID, label)
		extractedTopic := model.ExtractedTopic{
			Topic: model.Topic{
				ID:      topicID,
				ChunkID: chunk.ID,
				Label:   label,
				Summary: strings.TrimSpace(topic.Summary),
			},
		}

		for _, statement := range topic.Statements {
			text := strings.TrimSpace(statement.Text)
			if text == "" {
				continue
			}
			statementID := idgen.NodeID("statement", topicID, text)
			if seenStatements[statementID] {
				continue
			}
			seenStatements[statementID] = true

			extractedStatement := model.ExtractedStatement{
				Statement: model.Statement{
					ID:      statementID,
					TopicID: topicID,
					Text:    text,
				},
			}

			for _, fact := range statement.Facts {
				subject := buildEntity(idgen, fact.Subject, fact.SubjectClass)
				object := buildEntity(idgen, fact.Object, fact.ObjectClass)
				predicate := strings.TrimSpace(fact.Predicate)
				if subject == nil || object == nil || predicate == "" {
					continue
				}
				entities = append(entities, *subject, *object)

				triple := fmt.Sprintf("%s::%s::%s", subject.Name, predicate, object.Name)
				extractedStatement.Facts = append(extractedStatement.Facts, model.Fact{
					ID:          idgen.NodeID("fact", statementID, triple),
					StatementID: statementID,
					Subject:     entityRef(*subject),
					Predicate:   predicate,
					Object:      entityRef(*object),
				})
			}

			extractedTopic.Statements = append(extractedTopic.Statements, extractedStatement)
		}

		if len(extractedTopic.Statements) > 0 {
			extracted.Topics = append(extracted.Topics, extractedTopic)
		}
	}

	deduped, remap := DedupeEntities(entities)
	extracted.Entities = deduped
	if len(remap) > 0 {
		for i := range extracted.Topics {
			for j := range extracted.Topics[i].Statements {
				extracted.Topics[i].Statements[j].Facts = RemapFacts(extracted.Topics[i].Statements[j].Facts, remap)
			}
		}
	}

	return extracted
}

func buildEntity(idgen *model.IDGenerator, name string, classification string) *model.Entity {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	classification = strings.TrimSpace(strings.ToLower(classification))
	if classification == "" {
		classification = "unknown"
	}
	return &model.Entity{
		ID:             idgen.NodeID("entity", NormalizeEntityName(name), classification),
		Name:           name,
		Classification: classification,
	}
}

func entityRef(entity model.Entity) model.EntityRef {
	return model.EntityRef{
		EntityID:       entity.ID,
		Name:           entity.Name,
		Classification: entity.Classification,
	}
}
