package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"techmatch/talent-matcher/internal/models"
)

var ErrNoSearchRecords = errors.New("no search records found")

type SearchRecordRepository interface {
	Create(ctx context.Context, record *models.SearchRecord) error
	Latest(ctx context.Context) (*models.SearchRecord, error)
	List(ctx context.Context, limit int) ([]models.SearchRecord, error)
}

type searchRecordRepository struct {
	db *gorm.DB
}

func NewSearchRecordRepository(db *gorm.DB) SearchRecordRepository {
	return &searchRecordRepository{db: db}
}

func (r *searchRecordRepository) Create(ctx context.Context, record *models.SearchRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create search record: %w", err)
	}
	return nil
}

// Latest returns the most recent record, or ErrNoSearchRecords.
func (r *searchRecordRepository) Latest(ctx context.Context) (*models.SearchRecord, error) {
	var record models.SearchRecord
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSearchRecords
		}
		return nil, fmt.Errorf("failed to find latest search record: %w", err)
	}
	return &record, nil
}

func (r *searchRecordRepository) List(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	var records []models.SearchRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list search records: %w", err)
	}
	return records, nil
}
