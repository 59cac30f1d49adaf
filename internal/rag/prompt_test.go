package rag

import (
	"strings"
	"testing"

	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

func TestFormatSources(t *testing.T) {
	tests := []struct {
		name string
		docs []retrieval.Document
		want string
	}{
		{
			name: "empty",
			docs: nil,
			want: "No sources available.",
		},
		{
			name: "single with page",
			docs: []retrieval.Document{
				{Content: "The deductible is $500.", Source: "policy.pdf", PageNumber: 12},
			},
			want: "policy.pdf#page=12: The deductible is $500.",
		},
		{
			name: "no page number",
			docs: []retrieval.Document{
				{Content: "Intro text.", Source: "handbook.pdf"},
			},
			want: "handbook.pdf: Intro text.",
		},
		{
			name: "missing source",
			docs: []retrieval.Document{
				{Content: "orphan chunk"},
			},
			want: "unknown: orphan chunk",
		},
		{
			name: "multiple joined by blank line",
			docs: []retrieval.Document{
				{Content: "first", Source: "a.pdf", PageNumber: 1},
				{Content: "second", Source: "b.pdf"},
			},
			want: "a.pdf#page=1: first\n\nb.pdf: second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSources(tt.docs); got != tt.want {
				t.Errorf("FormatSources() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroundedPrompt(t *testing.T) {
	docs := []retrieval.Document{{Content: "fact", Source: "doc.pdf"}}
	prompt := GroundedPrompt(docs)

	if !strings.Contains(prompt, "Answer ONLY with the facts listed in the sources below.") {
		t.Error("prompt missing grounding instruction")
	}
	if !strings.Contains(prompt, "doc.pdf: fact") {
		t.Error("prompt missing formatted sources")
	}
}

func TestFormatCitations(t *testing.T) {
	if got := FormatCitations(nil); got != "No documents retrieved." {
		t.Errorf("empty citations = %q", got)
	}

	docs := []retrieval.Document{
		{Title: "Benefits Guide", Source: "benefits.pdf", PageNumber: 3, RerankerScore: 2.84},
		{Content: "untitled chunk"},
	}
	got := FormatCitations(docs)
	for _, want := range []string{"1. Benefits Guide", "benefits.pdf (page 3)", "relevance: 2.84", "2. Untitled"} {
		if !strings.Contains(got, want) {
			t.Errorf("citations missing %q:\n%s", want, got)
		}
	}
}
