package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmatch/talent-matcher/internal/models"
)

type memoryRecordRepo struct {
	mu      sync.Mutex
	records []models.SearchRecord
	failFor string
}

func (m *memoryRecordRepo) Create(_ context.Context, record *models.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.Query == m.failFor {
		return errors.New("insert failed")
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryRecordRepo) Latest(context.Context) (*models.SearchRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryRecordRepo) List(context.Context, int) ([]models.SearchRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryRecordRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestSearchRecorder_StopDrainsQueue(t *testing.T) {
	repo := &memoryRecordRepo{failFor: "broken"}
	rec := NewSearchRecorder(repo, 2, 10, nil)
	rec.Start(context.Background())

	for _, q := range []string{"go", "react", "broken", "rust"} {
		require.True(t, rec.Enqueue(&models.SearchRecord{Query: q, Status: models.SearchCompleted}))
	}
	rec.Stop()

	assert.Equal(t, 3, repo.count())
	for _, r := range repo.records {
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}

	assert.False(t, rec.Enqueue(&models.SearchRecord{Query: "late"}))
	rec.Stop()
}

func TestSearchRecorder_FullQueueDrops(t *testing.T) {
	repo := &memoryRecordRepo{}
	// not started, so nothing consumes the queue
	rec := NewSearchRecorder(repo, 1, 1, nil)

	assert.True(t, rec.Enqueue(&models.SearchRecord{Query: "a"}))
	assert.False(t, rec.Enqueue(&models.SearchRecord{Query: "b"}))
}

func TestSearchRecorder_AcceptedRecordsSurviveConcurrentStop(t *testing.T) {
	repo := &memoryRecordRepo{}
	rec := NewSearchRecorder(repo, 2, 1000, nil)
	rec.Start(context.Background())

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if rec.Enqueue(&models.SearchRecord{Query: "go", Status: models.SearchCompleted}) {
					accepted.Add(1)
				}
			}
		}()
	}

	rec.Stop()
	wg.Wait()

	assert.EqualValues(t, accepted.Load(), repo.count())
	assert.False(t, rec.Enqueue(&models.SearchRecord{Query: "late"}))
}
