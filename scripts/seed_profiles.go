package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
	"techmatch/talent-matcher/internal/services"
)

const (
	batchSize  = 10
	batchPause = 500 * time.Millisecond
)

// loadRecords reads an HR base export, either a bare array of records or an
// object with a "records" array.
func loadRecords(path string) ([]services.EmployeeRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var records []services.EmployeeRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to parse export: %w", err)
		}
		return records, nil
	}

	var wrapped struct {
		Records []services.EmployeeRecord `json:"records"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return wrapped.Records, nil
}

func main() {
	exportPath := flag.String("export", "./data/employees.json", "path to the HR base JSON export")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.Log.FilePath, cfg.Log.JSON, cfg.IsDevelopment())
	defer func() { _ = log.Sync() }()

	log.Info("🚀 Starting profile seeding...", zap.String("export", *exportPath))

	ctx := context.Background()

	var db *gorm.DB
	if cfg.Pipeline.ProfileStore != config.ProfileStoreQdrant {
		var err error
		db, err = config.InitDatabase(cfg, log)
		if err != nil {
			log.Fatal("❌ Failed to initialize database", zap.Error(err))
		}
	}

	store, err := services.OpenProfileStore(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("❌ Failed to initialize profile store", zap.Error(err))
	}

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, log)
	if err != nil {
		log.Fatal("❌ Failed to initialize Gemini", zap.Error(err))
	}

	records, err := loadRecords(*exportPath)
	if err != nil {
		log.Fatal("❌ Failed to load employee records", zap.Error(err))
	}

	docs := make([]models.ProfileDocument, 0, len(records))
	skipped := 0
	for _, r := range records {
		if !r.IsActive() {
			skipped++
			continue
		}
		docs = append(docs, services.BuildProfileDocument(r))
	}
	log.Info("📄 Records loaded",
		zap.Int("total", len(records)),
		zap.Int("active", len(docs)),
		zap.Int("skipped", skipped),
	)

	processed, failed := 0, 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		vectors, err := gemini.EmbedBatch(ctx, texts)
		if err != nil {
			log.Error("❌ Failed to embed batch", zap.Int("offset", start), zap.Error(err))
			failed += len(batch)
			continue
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := store.Upsert(ctx, batch); err != nil {
			log.Error("❌ Failed to store batch", zap.Int("offset", start), zap.Error(err))
			failed += len(batch)
			continue
		}

		processed += len(batch)
		log.Info("📊 Progress", zap.Int("stored", processed), zap.Int("of", len(docs)))

		if end < len(docs) {
			time.Sleep(batchPause)
		}
	}

	log.Info("✅ Seeding finished",
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Int("total", len(records)),
	)

	if failed > 0 {
		log.Warn("⚠️  Some profiles failed to seed. Please check the logs above.")
		os.Exit(1)
	}
}
