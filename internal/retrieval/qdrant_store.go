package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// originalIDField stores the caller-facing point ID in the payload, since
// Qdrant point IDs must be UUIDs or unsigned integers.
const originalIDField = "_original_id"

// QdrantStore is the production VectorStore backend for corpora above
// RetrievalExactCeilingChunks, where brute-force cosine search in MemoryStore
// would no longer serve queries within budget.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string

	mu       sync.Mutex
	byDocKey map[string][]*qdrant.PointId // tracked locally so Delete(documentID) can target exact points
}

// NewQdrantStore connects to dsn and ensures collection exists with the
// configured vector size and distance metric.
func NewQdrantStore(ctx context.Context, dsn, collection string, dimension int, metric string) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("retrieval: qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("retrieval: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("retrieval: invalid qdrant port: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("retrieval: create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
		byDocKey:   make(map[string][]*qdrant.PointId),
	}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("retrieval: ensure qdrant collection: %w", err)
	}
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if s.dimension <= 0 {
		return fmt.Errorf("retrieval: embedding dimension must be > 0 to create a collection")
	}
	distance := qdrant.Distance_Cosine
	switch s.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (s *QdrantStore) Upsert(ctx context.Context, points []VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	out := make([]*qdrant.PointStruct, 0, len(points))
	ids := make([]*qdrant.PointId, 0, len(points))
	byDoc := make(map[string][]*qdrant.PointId)
	for _, p := range points {
		uid := pointUUID(p.ID)
		metadata := make(map[string]any, len(p.Metadata)+3)
		for k, v := range p.Metadata {
			metadata[k] = v
		}
		metadata[originalIDField] = p.ID
		metadata["document_id"] = p.DocumentID
		metadata["ordinal"] = strconv.Itoa(p.Ordinal)

		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)

		id := qdrant.NewIDUUID(uid)
		out = append(out, &qdrant.PointStruct{
			Id:      id,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadata),
		})
		ids = append(ids, id)
		byDoc[p.DocumentID] = append(byDoc[p.DocumentID], id)
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: s.collection, Points: out}); err != nil {
		return err
	}

	s.mu.Lock()
	for doc, docIDs := range byDoc {
		s.byDocKey[doc] = append(s.byDocKey[doc], docIDs...)
	}
	s.mu.Unlock()
	return nil
}

// Delete removes every point previously upserted for documentID. Point IDs
// are tracked locally at upsert time since the point IDs are UUIDs derived
// from the caller's original chunk IDs, not recoverable from documentID
// alone without a server-side payload index.
func (s *QdrantStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	ids := s.byDocKey[documentID]
	delete(s.byDocKey, documentID)
	s.mu.Unlock()
	for _, id := range ids {
		if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Points:         qdrant.NewPointsSelector(id),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *QdrantStore) Search(ctx context.Context, query []float32, k int, filter map[string]string) ([]VectorResult, error) {
	if k <= 0 {
		k = 5
	}
	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}

	vec := make([]float32, len(query))
	copy(vec, query)
	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]VectorResult, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]string)
		var originalID, documentID string
		ordinal := 0
		if hit.Payload != nil {
			for key, v := range hit.Payload {
				switch key {
				case originalIDField:
					originalID = v.GetStringValue()
				case "document_id":
					documentID = v.GetStringValue()
				case "ordinal":
					ordinal, _ = strconv.Atoi(v.GetStringValue())
				default:
					metadata[key] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = hit.Id.GetUuid()
		}
		results = append(results, VectorResult{
			ID:         id,
			DocumentID: documentID,
			Ordinal:    ordinal,
			Score:      float64(hit.Score),
			Metadata:   metadata,
		})
	}
	return results, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
