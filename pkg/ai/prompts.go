package ai

// PropositionPrompt rewrites a chunk into decontextualized propositions.
// Format args: none; the chunk text is supplied as the user prompt.
const PropositionPrompt = `
# Task Context
You are a careful reader that rewrites a passage of text into a sequence of simple, self-contained propositions.

# Detailed Task Description & Rules
- Decompose the passage into the smallest meaningful claims.
- Each proposition must stand on its own: resolve pronouns and other references to the names they point to.
- Preserve the original meaning exactly. Do not add facts that are not in the passage.
- Preserve the order in which the information appears.
- Skip boilerplate, navigation text and formatting artifacts.

# Output Formatting
Return a JSON object with this structure:
{
  "propositions": ["<proposition 1>", "<proposition 2>"]
}
`

// ExtractPrompt turns a chunk (or its propositions) into topics, statements,
// facts and entities. Format args: comma-separated entity classifications,
// repeated twice.
const ExtractPrompt = `
# Task Context
You are an assistant that organizes a passage of text into a hierarchy of topics, statements, facts and entities for a knowledge graph.

# Detailed Task Description & Rules
- Identify the small number of topics the passage covers. A topic is a short noun-phrase label with a one-sentence summary.
- Attach to each topic the statements that belong to it. A statement is a single self-contained claim taken from the passage.
- For each statement, extract zero or more facts. A fact is a (subject, predicate, object) triple where subject and object are named entities and the predicate is a short verb phrase.
- Classify every entity with one of the following classifications: %s. If none fits, use "unknown".
- Use the passage's own wording for entity names. Do not invent entities that are not mentioned.
- Every statement must belong to exactly one topic. Every fact must be grounded in its statement.

# Examples
For the passage "Amazon was founded by Jeff Bezos in 1994. The company is headquartered in Seattle." a valid extraction is one topic ("Amazon") with two statements, where the first statement carries the fact (Jeff Bezos, founded, Amazon) and the second carries (Amazon, is headquartered in, Seattle).

# Immediate Task Description or Request
Extract all topics, statements, facts and entities from the provided passage. Use only these entity classifications: %s.

# Output Formatting
Return a JSON object matching the provided schema.
`

// AnswerPrompt combines retrieved graph context with a question.
// Format args: search results block, question.
const AnswerPrompt = `
# Task Context
You are a question answering assistant. You answer strictly based on the provided search results.

# Background Data
<searchResults>
%s
</searchResults>

# Detailed Task Description & Rules
- Answer the question using only information contained in the search results.
- If the search results do not contain the answer, say that you do not know.
- Be concise and factual. Do not speculate.
- Where useful, mention which source a piece of information came from.

# Immediate Task Description or Request
<question>
%s
</question>
`
