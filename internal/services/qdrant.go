package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

// ProfileStore is the vector store holding employee profiles. Upsert is keyed
// by the external record id and replaces existing entries.
type ProfileStore interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, docs []models.ProfileDocument) error
	Query(ctx context.Context, vector []float32, threshold float64) ([]models.ProfileMatch, error)
}

// profileNamespace derives stable point ids from record ids.
var profileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("techmatch/employee-profiles"))

const (
	payloadRecordID     = "record_id"
	payloadContent      = "content"
	payloadMetadataJSON = "metadata_json"
)

type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

type qdrantProfileStore struct {
	client         pointsAPI
	collectionName string
	vectorSize     uint64
	maxResults     uint64
	log            *zap.Logger
}

func NewQdrantProfileStore(cfg config.QdrantConfig, dimensions int, log *zap.Logger) (ProfileStore, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return newQdrantProfileStore(client, cfg, dimensions, log), nil
}

func newQdrantProfileStore(client pointsAPI, cfg config.QdrantConfig, dimensions int, log *zap.Logger) *qdrantProfileStore {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 1000
	}
	return &qdrantProfileStore{
		client:         client,
		collectionName: cfg.Collection,
		vectorSize:     uint64(dimensions),
		maxResults:     uint64(maxResults),
		log:            logger.Named(log, "qdrant"),
	}
}

// ProfilePointID returns the Qdrant point id for a record id.
func ProfilePointID(recordID string) string {
	return uuid.NewSHA1(profileNamespace, []byte(recordID)).String()
}

// EnsureSchema implements ProfileStore.
func (q *qdrantProfileStore) EnsureSchema(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		q.log.Info("✅ Collection already exists", zap.String("collection", q.collectionName))
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.log.Info("✅ Qdrant collection created", zap.String("collection", q.collectionName))
	return nil
}

// Upsert implements ProfileStore.
func (q *qdrantProfileStore) Upsert(ctx context.Context, docs []models.ProfileDocument) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", doc.ExternalID, err)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(ProfilePointID(doc.ExternalID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadRecordID:     doc.ExternalID,
				payloadContent:      doc.Content,
				payloadMetadataJSON: string(metadata),
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Query implements ProfileStore. Qdrant's score threshold is inclusive, so
// results equal to the threshold are dropped here. Scores are float32 and are
// compared at that precision.
func (q *qdrantProfileStore) Query(ctx context.Context, vector []float32, threshold float64) ([]models.ProfileMatch, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(vector...),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		Limit:          qdrant.PtrOf(q.maxResults),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]models.ProfileMatch, 0, len(points))
	for _, point := range points {
		if point.Score <= float32(threshold) {
			continue
		}

		payload := point.GetPayload()
		matches = append(matches, models.ProfileMatch{
			ExternalID: payload[payloadRecordID].GetStringValue(),
			Content:    payload[payloadContent].GetStringValue(),
			Metadata:   payload[payloadMetadataJSON].GetStringValue(),
			Similarity: float64(point.Score),
		})
	}

	if uint64(len(points)) == q.maxResults {
		q.log.Warn("query hit the result cap", zap.Uint64("max_results", q.maxResults))
	}

	return matches, nil
}
