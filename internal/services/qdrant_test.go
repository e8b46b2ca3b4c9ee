package services

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/models"
)

type stubPoints struct {
	exists  bool
	created *qdrant.CreateCollection
	upserts []*qdrant.UpsertPoints
	query   *qdrant.QueryPoints
	results []*qdrant.ScoredPoint
}

func (s *stubPoints) CollectionExists(context.Context, string) (bool, error) {
	return s.exists, nil
}

func (s *stubPoints) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	s.created = req
	return nil
}

func (s *stubPoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	s.upserts = append(s.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (s *stubPoints) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	s.query = req
	return s.results, nil
}

func scored(recordID string, score float32) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    qdrant.NewID(ProfilePointID(recordID)),
		Score: score,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadRecordID:     recordID,
			payloadContent:      "content of " + recordID,
			payloadMetadataJSON: `{"email":"` + recordID + `@example.com"}`,
		}),
	}
}

func testQdrantConfig() config.QdrantConfig {
	return config.QdrantConfig{Collection: "profiles", MaxResults: 50}
}

func TestProfilePointID_Stable(t *testing.T) {
	assert.Equal(t, ProfilePointID("rec123"), ProfilePointID("rec123"))
	assert.NotEqual(t, ProfilePointID("rec123"), ProfilePointID("rec124"))
}

func TestQdrantStore_EnsureSchema(t *testing.T) {
	stub := &stubPoints{}
	store := newQdrantProfileStore(stub, testQdrantConfig(), 768, nil)

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NotNil(t, stub.created)
	assert.Equal(t, "profiles", stub.created.CollectionName)

	existing := &stubPoints{exists: true}
	store = newQdrantProfileStore(existing, testQdrantConfig(), 768, nil)
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.Nil(t, existing.created)
}

func TestQdrantStore_UpsertUsesRecordIDs(t *testing.T) {
	stub := &stubPoints{}
	store := newQdrantProfileStore(stub, testQdrantConfig(), 3, nil)

	docs := []models.ProfileDocument{
		{ExternalID: "rec1", Content: "a", Embedding: []float32{1, 0, 0}, Metadata: models.ProfileMetadata{Email: "a@x.io"}},
		{ExternalID: "rec2", Content: "b", Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, store.Upsert(context.Background(), docs))
	require.NoError(t, store.Upsert(context.Background(), docs[:1]))

	require.Len(t, stub.upserts, 2)
	first := stub.upserts[0].Points
	require.Len(t, first, 2)
	assert.Equal(t, ProfilePointID("rec1"), first[0].GetId().GetUuid())
	assert.Equal(t, first[0].GetId().GetUuid(), stub.upserts[1].Points[0].GetId().GetUuid())
	assert.Equal(t, `{"email":"a@x.io"}`, first[0].GetPayload()[payloadMetadataJSON].GetStringValue())

	require.NoError(t, store.Upsert(context.Background(), nil))
	assert.Len(t, stub.upserts, 2)
}

func TestQdrantStore_QueryDropsScoresAtThreshold(t *testing.T) {
	stub := &stubPoints{results: []*qdrant.ScoredPoint{
		scored("rec1", 0.91),
		scored("rec2", 0.70),
		scored("rec3", 0.62),
	}}
	store := newQdrantProfileStore(stub, testQdrantConfig(), 3, nil)

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 0.62)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "rec1", matches[0].ExternalID)
	assert.Equal(t, "content of rec1", matches[0].Content)
	assert.InDelta(t, 0.91, matches[0].Similarity, 1e-6)

	meta, err := models.ParseMetadata(matches[1].Metadata)
	require.NoError(t, err)
	assert.Equal(t, "rec2@example.com", meta.Email)

	require.NotNil(t, stub.query.ScoreThreshold)
	assert.InDelta(t, 0.62, *stub.query.ScoreThreshold, 1e-6)
	assert.EqualValues(t, 50, *stub.query.Limit)
}
