package azure

import (
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
)

// stream adapts go-openai's SSE stream to llm.Stream.
type stream struct {
	inner  *openai.ChatCompletionStream
	done   bool
	closed bool
}

func (s *stream) Recv() (llm.Chunk, error) {
	if s.done || s.closed {
		return llm.Chunk{}, io.EOF
	}

	for {
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return llm.Chunk{Final: true}, nil
		}
		if err != nil {
			return llm.Chunk{}, mapError(err)
		}
		if len(resp.Choices) == 0 {
			// Azure emits a content-filter prelude chunk with no choices.
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			// Role-announcement and finish-reason chunks carry no content.
			continue
		}
		return llm.Chunk{Delta: delta}, nil
	}
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.inner.Close()
}
