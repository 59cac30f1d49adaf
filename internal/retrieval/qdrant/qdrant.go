// Package qdrant implements retrieval.Retriever against a Qdrant collection,
// intended for local development where no Azure AI Search index exists.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/ragrelay/internal/retrieval"
)

// Embedder produces embedding vectors for texts. The Azure provider's Embed
// satisfies this.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is a Qdrant-backed document store and retriever.
type Store struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
	embedder   Embedder
}

// New connects to Qdrant over gRPC.
func New(ctx context.Context, host string, port int, collection string, embedder Embedder) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
		embedder:   embedder,
	}, nil
}

func (s *Store) Name() string { return "qdrant" }

// Retrieve embeds the query and returns the topK nearest documents.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want 1", len(vectors))
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vectors[0],
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	docs := make([]retrieval.Document, len(resp.Result))
	for i, pt := range resp.Result {
		doc := retrieval.Document{Score: float64(pt.Score)}
		for k, v := range pt.Payload {
			switch k {
			case "content":
				doc.Content = v.GetStringValue()
			case "title":
				doc.Title = v.GetStringValue()
			case "source":
				doc.Source = v.GetStringValue()
			case "page_number":
				if n, err := strconv.Atoi(v.GetStringValue()); err == nil {
					doc.PageNumber = n
				}
			}
		}
		docs[i] = doc
	}
	return docs, nil
}

// Index embeds the documents and upserts them into the collection. Retrieval
// is the hot path; indexing is exposed for local corpus loading.
func (s *Store) Index(ctx context.Context, docs []retrieval.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(docs))
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{
			"content": {Kind: &pb.Value_StringValue{StringValue: d.Content}},
			"title":   {Kind: &pb.Value_StringValue{StringValue: d.Title}},
			"source":  {Kind: &pb.Value_StringValue{StringValue: d.Source}},
		}
		if d.PageNumber != 0 {
			payload["page_number"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: strconv.Itoa(d.PageNumber)}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payload,
		}
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	return err
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
