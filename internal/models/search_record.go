package models

import (
	"time"

	"github.com/google/uuid"
)

type SearchStatus string

const (
	SearchCompleted SearchStatus = "completed"
	SearchFailed    SearchStatus = "failed"
)

// SearchRecord keeps one finished pipeline run for history and token usage.
type SearchRecord struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Source          string       `gorm:"type:text;not null" json:"source"`
	Model           string       `gorm:"type:text" json:"model"`
	Query           string       `gorm:"type:text" json:"query"`
	RequirementText string       `gorm:"type:text" json:"requirementText,omitempty"`
	Status          SearchStatus `gorm:"type:text;not null" json:"status"`
	FailedStep      string       `gorm:"type:text" json:"failedStep,omitempty"`
	ErrorReason     string       `gorm:"type:text" json:"errorReason,omitempty"`
	MatchCount      int          `gorm:"default:0" json:"matchCount"`
	InputTokens     int          `gorm:"default:0" json:"inputTokens"`
	OutputTokens    int          `gorm:"default:0" json:"outputTokens"`
	TotalTokens     int          `gorm:"default:0" json:"totalTokens"`
	CreatedAt       time.Time    `gorm:"index;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (SearchRecord) TableName() string {
	return "search_records"
}
