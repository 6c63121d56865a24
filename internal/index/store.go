// Package index wraps the Qdrant collection holding the embedded
// study corpus: schema management, batched uploads and filtered
// similarity search.
package index

import (
	"context"
	"fmt"
	"log"

	"github.com/qdrant/go-client/qdrant"

	"github.com/studyforge/certrag/internal/corpus"
)

const (
	DefaultCollection = "comptia_security_plus"
	DefaultDimension  = 1536

	// DefaultUploadBatch is the number of points sent per upsert.
	DefaultUploadBatch = 100
)

// Options configures the connection and collection.
type Options struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// Store is the Qdrant-backed vector index.
type Store struct {
	client     *qdrant.Client
	collection string
	dim        int
	logger     *log.Logger
}

// Info describes the collection for health and admin output.
type Info struct {
	Collection  string `json:"collection_name"`
	PointsCount uint64 `json:"vectors_count"`
	VectorSize  uint64 `json:"vector_size"`
	Distance    string `json:"distance"`
	Status      string `json:"status"`
}

func New(opts Options) (*Store, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 6334
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: opts.Collection,
		dim:        opts.Dimension,
		logger:     log.New(log.Writer(), "[INDEX] ", log.LstdFlags),
	}, nil
}

func (s *Store) Collection() string { return s.collection }
func (s *Store) Dimension() int     { return s.dim }

func (s *Store) Close() error { return s.client.Close() }

// Healthy reports whether the index is reachable.
func (s *Store) Healthy(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("healthcheck: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Search returns the k nearest passages by cosine similarity,
// restricted by filter, ordered by descending score.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter corpus.Filter) ([]corpus.SearchResult, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, collection %s expects %d: %w",
			len(vector), s.collection, s.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %v", s.collection, ErrUnavailable, err)
	}

	results := make([]corpus.SearchResult, 0, len(points))
	for _, pt := range points {
		results = append(results, corpus.SearchResult{
			Passage: passageFromPayload(pt.GetPayload()),
			Score:   float64(pt.GetScore()),
		})
	}
	return results, nil
}

// EnsureCollection creates the collection with cosine distance and
// keyword payload indexes over the filterable metadata fields. An
// existing collection is left alone unless recreate is set.
func (s *Store) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("collection exists: %w: %v", ErrUnavailable, err)
	}
	if exists {
		if !recreate {
			s.logger.Printf("collection %s already exists", s.collection)
			return nil
		}
		s.logger.Printf("dropping collection %s", s.collection)
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("delete collection: %w: %v", ErrUnavailable, err)
		}
	}

	s.logger.Printf("creating collection %s (dim=%d, cosine)", s.collection, s.dim)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w: %v", ErrUnavailable, err)
	}

	for _, field := range []string{"metadata.chapter_num", "metadata.section_num", "metadata.content_type"} {
		ft := qdrant.FieldType_FieldTypeKeyword
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &ft,
		})
		if err != nil {
			return fmt.Errorf("create payload index %s: %w: %v", field, ErrUnavailable, err)
		}
	}
	return nil
}

// Upsert uploads embedded passages in batches, deriving point ids
// from chunk ids. Every passage must carry a vector of the collection
// dimension. Returns the number of points written.
func (s *Store) Upsert(ctx context.Context, passages []corpus.Passage, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultUploadBatch
	}

	uploaded := 0
	for start := 0; start < len(passages); start += batchSize {
		end := start + batchSize
		if end > len(passages) {
			end = len(passages)
		}

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range passages[start:end] {
			if len(p.Embedding) != s.dim {
				return uploaded, fmt.Errorf("chunk %s: embedding has %d dimensions, collection expects %d: %w",
					p.ChunkID, len(p.Embedding), s.dim, ErrDimensionMismatch)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(pointID(p.ChunkID)),
				Vectors: qdrant.NewVectors(p.Embedding...),
				Payload: qdrant.NewValueMap(passagePayload(p)),
			})
		}

		wait := true
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           &wait,
		})
		if err != nil {
			return uploaded, fmt.Errorf("upsert batch at %d: %w: %v", start, ErrUnavailable, err)
		}
		uploaded += len(points)
		s.logger.Printf("uploaded %d/%d points to %s", uploaded, len(passages), s.collection)
	}
	return uploaded, nil
}

// Count returns the exact number of points matching the filter. The
// zero filter counts the whole collection.
func (s *Store) Count(ctx context.Context, filter corpus.Filter) (uint64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filter),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w: %v", s.collection, ErrUnavailable, err)
	}
	return n, nil
}

// Describe returns collection stats for health and admin output.
func (s *Store) Describe(ctx context.Context) (Info, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return Info{}, fmt.Errorf("collection info %s: %w: %v", s.collection, ErrUnavailable, err)
	}

	out := Info{
		Collection:  s.collection,
		PointsCount: info.GetPointsCount(),
		Status:      info.GetStatus().String(),
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		out.VectorSize = params.GetSize()
		out.Distance = params.GetDistance().String()
	}
	return out, nil
}

// Drop deletes the collection.
func (s *Store) Drop(ctx context.Context) error {
	s.logger.Printf("deleting collection %s", s.collection)
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("delete collection: %w: %v", ErrUnavailable, err)
	}
	return nil
}
