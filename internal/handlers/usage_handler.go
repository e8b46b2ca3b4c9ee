package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"techmatch/talent-matcher/internal/models"
	"techmatch/talent-matcher/internal/repositories"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type UsageHandler struct {
	records repositories.SearchRecordRepository
}

func NewUsageHandler(records repositories.SearchRecordRepository) *UsageHandler {
	return &UsageHandler{records: records}
}

// HandleTokenUsage handles GET /token-usage
func (h *UsageHandler) HandleTokenUsage(c *fiber.Ctx) error {
	record, err := h.records.Latest(c.UserContext())
	if err != nil {
		if errors.Is(err, repositories.ErrNoSearchRecords) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "No token usage found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Error fetching token usage"})
	}

	return c.JSON(models.TokenUsageResponse{
		TokenUsage: models.TokenUsageView{
			InputTokens:  record.InputTokens,
			OutputTokens: record.OutputTokens,
			TotalTokens:  record.TotalTokens,
			Source:       record.Source,
			CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

// HandleHistory handles GET /history?limit=N
func (h *UsageHandler) HandleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.records.List(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Error fetching search history"})
	}
	if records == nil {
		records = []models.SearchRecord{}
	}

	return c.JSON(models.HistoryResponse{Records: records})
}
