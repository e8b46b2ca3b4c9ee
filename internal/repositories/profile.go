package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"techmatch/talent-matcher/internal/models"
)

// ProfileRepository is the pgvector backed profile store.
type ProfileRepository interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, docs []models.ProfileDocument) error
	Query(ctx context.Context, vector []float32, threshold float64) ([]models.ProfileMatch, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) EnsureSchema(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&models.EmployeeProfile{}); err != nil {
		return fmt.Errorf("failed to migrate profiles: %w", err)
	}
	return nil
}

// Upsert inserts the documents, replacing content, metadata and embedding of
// rows whose record id already exists.
func (r *profileRepository) Upsert(ctx context.Context, docs []models.ProfileDocument) error {
	if len(docs) == 0 {
		return nil
	}

	rows := make([]models.EmployeeProfile, 0, len(docs))
	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", doc.ExternalID, err)
		}
		rows = append(rows, models.EmployeeProfile{
			RecordID:  doc.ExternalID,
			Content:   doc.Content,
			Metadata:  datatypes.JSON(metadata),
			Embedding: pgvector.NewVector(doc.Embedding),
		})
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert profiles: %w", err)
	}

	return nil
}

type scoredProfile struct {
	RecordID   string
	Content    string
	Metadata   datatypes.JSON
	Similarity float64
}

// Query returns every profile whose cosine similarity to vector is strictly
// above threshold, most similar first. Ties are ordered by insertion.
func (r *profileRepository) Query(ctx context.Context, vector []float32, threshold float64) ([]models.ProfileMatch, error) {
	queryVector := pgvector.NewVector(vector)

	// pgvector's <=> is cosine distance, so 1 - distance is the similarity.
	var rows []scoredProfile
	err := r.db.WithContext(ctx).
		Model(&models.EmployeeProfile{}).
		Select("record_id, content, metadata, 1 - (embedding <=> ?) AS similarity", queryVector).
		Where("1 - (embedding <=> ?) > ?", queryVector, threshold).
		Order("similarity DESC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	matches := make([]models.ProfileMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, models.ProfileMatch{
			ExternalID: row.RecordID,
			Content:    row.Content,
			Metadata:   row.Metadata,
			Similarity: row.Similarity,
		})
	}
	return matches, nil
}
