package rag

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

// GroundedSystemPrompt is the system prompt used for grounded answers.
// The %s slot receives the formatted sources block.
const GroundedSystemPrompt = `You are an intelligent assistant helping users with questions based on the provided documents.
Answer ONLY with the facts listed in the sources below. If there isn't enough information below, say you don't know.
Do not generate answers that don't use the sources below. If asking a clarifying question would help, ask the question.

For tabular information return it as an html table. Do not return markdown format for tables.
Each source has a name followed by colon and the actual information, always include the source name for each fact you use in the response.
Use square brackets to reference the source, for example [source1.pdf]. Don't combine sources, list each source separately, for example [source1.pdf][source2.pdf].

%s
`

// DefaultSystemPrompt is used when grounding is disabled and the caller
// supplied no prompt of their own.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// FormatSources renders retrieved documents as a sources block for the
// grounded system prompt. Each document becomes one "name: content" entry,
// where the name carries a #page=N suffix when a page number is known.
func FormatSources(docs []retrieval.Document) string {
	if len(docs) == 0 {
		return "No sources available."
	}

	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		name := doc.Source
		if name == "" {
			name = "unknown"
		}
		if doc.PageNumber > 0 {
			name = fmt.Sprintf("%s#page=%d", name, doc.PageNumber)
		}
		entries = append(entries, name+": "+doc.Content)
	}
	return strings.Join(entries, "\n\n")
}

// GroundedPrompt builds the full grounded system prompt for a set of documents.
func GroundedPrompt(docs []retrieval.Document) string {
	return fmt.Sprintf(GroundedSystemPrompt, FormatSources(docs))
}

// FormatCitations renders retrieved documents as a human-readable citation
// list for display alongside an answer.
func FormatCitations(docs []retrieval.Document) string {
	if len(docs) == 0 {
		return "No documents retrieved."
	}

	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "%d. %s", i+1, title)
		if doc.Source != "" {
			fmt.Fprintf(&b, "\n   %s", doc.Source)
			if doc.PageNumber > 0 {
				fmt.Fprintf(&b, " (page %d)", doc.PageNumber)
			}
		}
		if doc.RerankerScore > 0 {
			fmt.Fprintf(&b, "\n   relevance: %.2f", doc.RerankerScore)
		}
	}
	return b.String()
}
