package model

// NodeType identifies the level of the lexical graph a node belongs to.
type NodeType string

const (
	NodeSource    NodeType = "Source"
	NodeChunk     NodeType = "Chunk"
	NodeTopic     NodeType = "Topic"
	NodeStatement NodeType = "Statement"
	NodeFact      NodeType = "Fact"
	NodeEntity    NodeType = "Entity"
)

// EdgeType identifies a typed edge between two lexical graph nodes.
type EdgeType string

const (
	EdgeContains  EdgeType = "CONTAINS"
	EdgeHasFact   EdgeType = "HAS_FACT"
	EdgeSubject   EdgeType = "SUBJECT"
	EdgeObject    EdgeType = "OBJECT"
	EdgeRelatesTo EdgeType = "RELATES_TO"
)

// Source represents one ingested document. Its id is derived from the
// document text and its canonical metadata string, so the same document with
// the same metadata always maps to the same subgraph root.
type Source struct {
	ID          string   `json:"id"`
	Metadata    Metadata `json:"metadata"`
	ContentHash string   `json:"content_hash"`
}

// Chunk is a contiguous text span of a source document. Chunks are the unit
// of extraction: a chunk is retried or failed whole.
type Chunk struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Topic is a theme spanning one or more statements within a chunk.
type Topic struct {
	ID      string `json:"id"`
	ChunkID string `json:"chunk_id"`
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// Statement is a self-contained proposition extracted from a chunk. The
// embedding is populated by the vector indexer when the statement node type
// is configured as embeddable.
type Statement struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// EntityRef points at an entity from a fact without embedding the whole
// entity record. The id is derived from the normalized name and
// classification, so references to the same real-world entity converge.
type EntityRef struct {
	EntityID       string `json:"entity_id"`
	Name           string `json:"name"`
	Classification string `json:"classification"`
}

// Fact is a (subject, predicate, object) triple derived from a statement.
type Fact struct {
	ID          string    `json:"id"`
	StatementID string    `json:"statement_id"`
	Subject     EntityRef `json:"subject"`
	Predicate   string    `json:"predicate"`
	Object      EntityRef `json:"object"`
}

// Entity is a named concept referenced by facts. Entities are deduplicated
// by normalized name within an extraction batch and upserted by derived id
// across batches.
type Entity struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Classification string `json:"classification"`
}

// Node is the store-facing representation of any lexical graph node. The
// builder flattens the typed records above into nodes before writing.
type Node struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Edge is a typed, directed connection between two nodes.
type Edge struct {
	FromID string   `json:"from_id"`
	ToID   string   `json:"to_id"`
	Type   EdgeType `json:"type"`
}

// ExtractedStatement couples a statement with the facts derived from it.
type ExtractedStatement struct {
	Statement Statement `json:"statement"`
	Facts     []Fact    `json:"facts"`
}

// ExtractedTopic couples a topic with its extracted statements.
type ExtractedTopic struct {
	Topic      Topic                `json:"topic"`
	Statements []ExtractedStatement `json:"statements"`
}

// ExtractedChunk is the complete extraction result for one chunk. It is the
// unit handed to the intermediate sink and later consumed by the graph
// builder, and it carries everything needed to build the chunk's subgraph
// without further model calls.
type ExtractedChunk struct {
	Source       Source           `json:"source"`
	Chunk        Chunk            `json:"chunk"`
	Propositions []string         `json:"propositions,omitempty"`
	Topics       []ExtractedTopic `json:"topics"`
	Entities     []Entity         `json:"entities"`
}
