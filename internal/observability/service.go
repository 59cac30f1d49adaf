package observability

// ServiceMetrics bundles the metrics tracked by the chat service.
type ServiceMetrics struct {
	Registry *MetricsRegistry

	ChatRequests      *Counter
	StreamRequests    *Counter
	SearchRequests    *Counter
	RequestErrors     *Counter
	StreamChunks      *Counter
	ActiveStreams     *Gauge
	RequestDuration   *Histogram
	RetrievalDuration *Histogram
}

// NewServiceMetrics registers the chat service metrics on a fresh registry.
func NewServiceMetrics() *ServiceMetrics {
	r := NewMetricsRegistry()
	return &ServiceMetrics{
		Registry:          r,
		ChatRequests:      r.NewCounter("ragrelay_chat_requests_total", "Total chat completion requests", nil),
		StreamRequests:    r.NewCounter("ragrelay_stream_requests_total", "Total streaming chat requests", nil),
		SearchRequests:    r.NewCounter("ragrelay_search_requests_total", "Total document search requests", nil),
		RequestErrors:     r.NewCounter("ragrelay_request_errors_total", "Total failed requests", nil),
		StreamChunks:      r.NewCounter("ragrelay_stream_chunks_total", "Total streamed content chunks", nil),
		ActiveStreams:     r.NewGauge("ragrelay_active_streams", "Streams currently in flight", nil),
		RequestDuration:   r.NewHistogram("ragrelay_request_duration_seconds", "End-to-end request latency", nil, nil),
		RetrievalDuration: r.NewHistogram("ragrelay_retrieval_duration_seconds", "Document retrieval latency", nil, nil),
	}
}
