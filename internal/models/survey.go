package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SurveyStatus string

const (
	StatusDraft     SurveyStatus = "DRAFT"
	StatusScheduled SurveyStatus = "SCHEDULED"
	StatusActive    SurveyStatus = "ACTIVE"
	StatusClosed    SurveyStatus = "CLOSED"
)

var SurveyStatuses = []SurveyStatus{StatusDraft, StatusScheduled, StatusActive, StatusClosed}

func (s SurveyStatus) Valid() bool {
	for _, known := range SurveyStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Survey owns its questions; deleting a survey deletes them and everything below.
type Survey struct {
	ID                     uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title                  string       `gorm:"size:200;not null" json:"title"`
	Description            string       `gorm:"type:text" json:"description"`
	Status                 SurveyStatus `gorm:"size:20;not null;index" json:"status"`
	StartDate              *time.Time   `gorm:"index" json:"start_date,omitempty"`
	EndDate                *time.Time   `json:"end_date,omitempty"`
	AllowMultipleResponses bool         `gorm:"not null" json:"allow_multiple_responses"`
	CreatedByID            uuid.UUID    `gorm:"type:uuid;not null;index" json:"created_by"`
	Questions              []Question   `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (s *Survey) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusDraft
	}
	return nil
}

// Frozen reports whether the survey's structure (fields and questions) may no longer change.
func (s *Survey) Frozen() bool {
	return s.Status == StatusActive || s.Status == StatusClosed
}
