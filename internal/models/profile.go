package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// EmployeeProfile is one row of the profile store. Rows are written by the
// seeding job only; the matching pipeline reads them.
type EmployeeProfile struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	RecordID  string          `gorm:"type:text;uniqueIndex;not null" json:"record_id"`
	Content   string          `gorm:"type:text" json:"content"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb" json:"metadata"`
	Embedding pgvector.Vector `gorm:"type:vector(768)" json:"-"` // text-embedding-004
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EmployeeProfile) TableName() string {
	return "employee_profiles_techmatch"
}

// ProfileDocument is the write-path payload for a single profile.
type ProfileDocument struct {
	ExternalID string
	Content    string
	Metadata   ProfileMetadata
	Embedding  []float32
}

// ProfileMatch is a profile joined with its similarity to a query vector.
//
// Metadata is whatever the store delivered: a ProfileMetadata, a decoded map,
// or the serialized JSON (string, []byte, datatypes.JSON). Use ParseMetadata
// to read it.
type ProfileMatch struct {
	ExternalID string  `json:"externalId"`
	Content    string  `json:"content"`
	Metadata   any     `json:"metadata"`
	Similarity float64 `json:"similarity"`
}

type ProfileMetadata struct {
	RecordID          string `json:"record_id,omitempty"`
	FullName          string `json:"full_name,omitempty"`
	Email             string `json:"email,omitempty"`
	Status            string `json:"status,omitempty"`
	Area              string `json:"area,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
	Seniority         string `json:"seniority,omitempty"`
	Location          string `json:"location,omitempty"`
	Office            string `json:"office,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// ParseMetadata decodes profile metadata delivered in any of the shapes a
// store may produce. Null JSON values decode to empty strings.
func ParseMetadata(raw any) (ProfileMetadata, error) {
	var meta ProfileMetadata

	var data []byte
	switch v := raw.(type) {
	case nil:
		return meta, nil
	case ProfileMetadata:
		return v, nil
	case *ProfileMetadata:
		if v == nil {
			return meta, nil
		}
		return *v, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case datatypes.JSON:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return meta, fmt.Errorf("failed to encode metadata: %w", err)
		}
		data = encoded
	}

	if strings.TrimSpace(string(data)) == "" || string(data) == "null" {
		return meta, nil
	}

	if err := json.Unmarshal(data, &meta); err != nil {
		return ProfileMetadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return meta, nil
}
