package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
	"techmatch/talent-matcher/internal/repositories"
)

const recordWriteTimeout = 5 * time.Second

// SearchRecorder persists finished searches off the request path.
type SearchRecorder interface {
	Start(ctx context.Context)
	Stop()
	// Enqueue never blocks; a full queue drops the record.
	Enqueue(record *models.SearchRecord) bool
}

type searchRecorder struct {
	repo        repositories.SearchRecordRepository
	queue       chan *models.SearchRecord
	concurrency int
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
	// mu orders Enqueue against Stop so nothing lands in the queue after
	// the workers drained it.
	mu      sync.RWMutex
	stopped bool
	log         *zap.Logger
}

func NewSearchRecorder(repo repositories.SearchRecordRepository, concurrency, queueSize int, log *zap.Logger) SearchRecorder {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	return &searchRecorder{
		repo:        repo,
		queue:       make(chan *models.SearchRecord, queueSize),
		concurrency: concurrency,
		stopChan:    make(chan struct{}),
		log:         logger.Named(log, "recorder"),
	}
}

// Start implements SearchRecorder.
func (w *searchRecorder) Start(ctx context.Context) {
	w.log.Info("🚀 Starting search recorder", zap.Int("workers", w.concurrency))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processRecords(ctx, i+1)
	}
}

// Stop implements SearchRecorder. Records still queued are written before it
// returns.
func (w *searchRecorder) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info("🛑 Stopping search recorder...")
		w.mu.Lock()
		w.stopped = true
		close(w.stopChan)
		w.mu.Unlock()
		w.wg.Wait()
		w.log.Info("✅ Search recorder stopped")
	})
}

// Enqueue implements SearchRecorder.
func (w *searchRecorder) Enqueue(record *models.SearchRecord) bool {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.log.Warn("⚠️ Recorder stopped, dropping search record", zap.Stringer("id", record.ID))
		return false
	}

	select {
	case w.queue <- record:
		return true
	default:
		w.log.Warn("⚠️ Recorder queue full, dropping search record", zap.Stringer("id", record.ID))
		return false
	}
}

func (w *searchRecorder) processRecords(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			w.drain(workerID)
			return
		case <-ctx.Done():
			return
		case record := <-w.queue:
			w.write(workerID, record)
		}
	}
}

func (w *searchRecorder) drain(workerID int) {
	for {
		select {
		case record := <-w.queue:
			w.write(workerID, record)
		default:
			return
		}
	}
}

func (w *searchRecorder) write(workerID int, record *models.SearchRecord) {
	// a detached context so records survive request cancellation
	ctx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
	defer cancel()

	if err := w.repo.Create(ctx, record); err != nil {
		w.log.Error("❌ Failed to save search record",
			zap.Int("worker", workerID),
			zap.Stringer("id", record.ID),
			zap.Error(err),
		)
		return
	}
	w.log.Debug("💾 Search record saved", zap.Int("worker", workerID), zap.Stringer("id", record.ID))
}
