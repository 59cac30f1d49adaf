package llm

// Chunk is one incremental fragment of a streamed reply.
type Chunk struct {
	Delta string `json:"delta"`
	Final bool   `json:"final"`
}

// Stream is a pull-based iterator over a streamed completion.
//
// Recv blocks until the next chunk arrives. A successful stream yields zero
// or more content chunks followed by exactly one chunk with Final set; any
// Recv after that returns io.EOF. Close releases the underlying connection
// and may be called at any time, including mid-stream to abandon it.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}
