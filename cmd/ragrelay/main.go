package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/ragrelay/internal/api"
	"github.com/efebarandurmaz/ragrelay/internal/config"
	"github.com/efebarandurmaz/ragrelay/internal/llm"
	"github.com/efebarandurmaz/ragrelay/internal/llm/azure"
	"github.com/efebarandurmaz/ragrelay/internal/observability"
	"github.com/efebarandurmaz/ragrelay/internal/rag"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval/azsearch"
	"github.com/efebarandurmaz/ragrelay/internal/retrieval/qdrant"
	"github.com/efebarandurmaz/ragrelay/internal/server"
)

const version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragrelay",
		Short: "Retrieval-augmented chat service for Azure OpenAI",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (env-only when empty)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	var (
		topK  int
		noRAG bool
	)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the document index without generating an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return search(configPath, args[0], topK)
		},
	}
	searchCmd.Flags().IntVar(&topK, "top-k", 5, "Number of documents to retrieve")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and stream the answer to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(configPath, args[0], topK, noRAG)
		},
	}
	askCmd.Flags().IntVar(&topK, "top-k", 5, "Number of documents to retrieve")
	askCmd.Flags().BoolVar(&noRAG, "no-rag", false, "Skip retrieval and chat directly")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ragrelay", version)
		},
	}

	rootCmd.AddCommand(serveCmd, searchCmd, askCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// service bundles everything a command needs, with a cleanup for
// connections opened along the way.
type service struct {
	cfg        *config.Config
	provider   llm.Provider
	retriever  retrieval.Retriever
	metrics    *observability.ServiceMetrics
	storeClose func() error
}

func (s *service) close() {
	if s.storeClose != nil {
		if err := s.storeClose(); err != nil {
			slog.Warn("Vector store close failed", "error", err)
		}
	}
}

func buildService(ctx context.Context, configPath string) (*service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)

	var cred azure.CredentialProvider
	if cfg.LLM.APIKey == "" || (cfg.Retrieval.Backend == "azure_search" && cfg.Search.APIKey == "") {
		cred, err = azure.NewDefaultCredential()
		if err != nil {
			return nil, fmt.Errorf("azure credential: %w", err)
		}
	}

	client, err := azure.New(azure.Config{
		Endpoint:        cfg.LLM.Endpoint,
		Deployment:      cfg.LLM.Deployment,
		EmbedDeployment: cfg.LLM.EmbedDeployment,
		APIVersion:      cfg.LLM.APIVersion,
		APIKey:          cfg.LLM.APIKey,
		Timeout:         time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, cred)
	if err != nil {
		return nil, err
	}

	// Blocking completions retry on transient failures; streams are
	// dispatched once and never resent.
	var provider llm.Provider = llm.NewRetryProvider(client, nil)
	if cfg.LLM.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitProvider(provider, &llm.RateLimitConfig{
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		})
	}

	svc := &service{
		cfg:      cfg,
		provider: provider,
		metrics:  observability.NewServiceMetrics(),
	}

	switch cfg.Retrieval.Backend {
	case "azure_search":
		retriever, err := azsearch.New(azsearch.Config{
			Endpoint:              cfg.Search.Endpoint,
			Index:                 cfg.Search.Index,
			APIVersion:            cfg.Search.APIVersion,
			APIKey:                cfg.Search.APIKey,
			UseSemanticRanker:     cfg.Search.UseSemanticRanker,
			SemanticConfiguration: cfg.Search.SemanticConfiguration,
			VectorField:           cfg.Search.VectorField,
		}, cred)
		if err != nil {
			return nil, err
		}
		svc.retriever = retriever
	case "qdrant":
		store, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection, provider)
		if err != nil {
			return nil, err
		}
		svc.retriever = store
		svc.storeClose = store.Close
	case "", "none":
		slog.Info("No retrieval backend configured; grounding disabled")
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}

	return svc, nil
}

func serve(configPath string) error {
	ctx := context.Background()

	svc, err := buildService(ctx, configPath)
	if err != nil {
		return err
	}
	cfg := svc.cfg

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ragrelay",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		svc.close()
		return fmt.Errorf("init tracing: %w", err)
	}

	engine := rag.New(svc.provider, svc.retriever, svc.metrics, slog.Default())

	apiServer := api.NewServer(&api.Config{
		ListenAddr:         cfg.Server.ListenAddr,
		ModelName:          cfg.LLM.Deployment,
		EndpointConfigured: cfg.LLM.Endpoint != "",
		DefaultTemperature: &cfg.LLM.Temperature,
		DefaultMaxTokens:   &cfg.LLM.MaxTokens,
	}, engine, svc.metrics)

	graceful := server.NewGracefulServer(nil, nil)
	graceful.Health.RegisterCheck("config", server.ConfigHealthChecker(cfg.Missing()))
	graceful.Health.RegisterCheck("llm", server.LLMHealthChecker("azure", nil))
	if svc.retriever != nil {
		graceful.Health.RegisterCheck("retrieval", server.SearchHealthChecker(svc.retriever.Name(), func(ctx context.Context) error {
			_, err := svc.retriever.Retrieve(ctx, "healthcheck", 1)
			return err
		}))
	}

	// The store closes after the HTTP drain so in-flight retrievals
	// finish against a live connection.
	hooks := []server.ShutdownHook{
		server.HTTPServerShutdownHook("api", apiServer.Stop),
		server.TracingShutdownHook(tp.Shutdown),
	}
	if svc.storeClose != nil {
		hooks = append(hooks, server.VectorStoreShutdownHook(svc.storeClose))
	}
	for _, h := range hooks {
		graceful.RegisterHook(h.Name, h.Priority, h.Fn)
	}

	if err := graceful.Start(cfg.Server.HealthAddr); err != nil {
		svc.close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	slog.Info("ragrelay started",
		"version", version,
		"addr", cfg.Server.ListenAddr,
		"health_addr", cfg.Server.HealthAddr,
		"model", cfg.LLM.Deployment,
		"retrieval", cfg.Retrieval.Backend)

	go func() {
		if err := <-errCh; err != nil {
			slog.Error("API server stopped", "error", err)
			graceful.Shutdown.Shutdown()
		}
	}()

	graceful.Wait()
	return nil
}

func search(configPath, query string, topK int) error {
	ctx := context.Background()

	svc, err := buildService(ctx, configPath)
	if err != nil {
		return err
	}
	defer svc.close()

	engine := rag.New(svc.provider, svc.retriever, svc.metrics, slog.Default())
	docs, err := engine.Documents(ctx, query, topK)
	if err != nil {
		return err
	}

	fmt.Printf("Retrieved %d documents for %q:\n\n", len(docs), query)
	fmt.Println(rag.FormatCitations(docs))
	return nil
}

// stdoutSink streams deltas straight to the terminal.
type stdoutSink struct{}

func (stdoutSink) SendDelta(delta string) error {
	_, err := fmt.Print(delta)
	return err
}

func (stdoutSink) SendDone() error {
	_, err := fmt.Println()
	return err
}

func (stdoutSink) SendError(err error) error {
	fmt.Fprintf(os.Stderr, "\nstream failed: %v\n", err)
	return nil
}

func ask(configPath, question string, topK int, noRAG bool) error {
	ctx := context.Background()

	svc, err := buildService(ctx, configPath)
	if err != nil {
		return err
	}
	defer svc.close()

	engine := rag.New(svc.provider, svc.retriever, svc.metrics, slog.Default())

	docs, result, err := engine.ChatStream(ctx, rag.Request{
		Message: question,
		UseRAG:  !noRAG && svc.retriever != nil,
		TopK:    topK,
		Options: &llm.Options{
			Temperature: &svc.cfg.LLM.Temperature,
			MaxTokens:   &svc.cfg.LLM.MaxTokens,
		},
	}, stdoutSink{})
	if err != nil {
		return err
	}

	if len(docs) > 0 {
		fmt.Printf("\nSources:\n%s\n", rag.FormatCitations(docs))
	}
	slog.Debug("answer complete", "chunks", result.Chunks)
	return nil
}
