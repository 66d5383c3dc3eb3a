package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionRating         QuestionType = "RATING"
	QuestionYesNo          QuestionType = "YES_NO"
	QuestionLikertScale    QuestionType = "LIKERT_SCALE"
)

var QuestionTypes = []QuestionType{
	QuestionText, QuestionMultipleChoice, QuestionRating, QuestionYesNo, QuestionLikertScale,
}

func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Question is one ordered item of a survey. OrderIndex is dense and zero-based per survey.
type Question struct {
	ID                   uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SurveyID             uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_questions_survey_order,priority:1" json:"survey_id"`
	Text                 string       `gorm:"type:text;not null" json:"text"`
	Type                 QuestionType `gorm:"size:30;not null" json:"type"`
	OrderIndex           int          `gorm:"not null;uniqueIndex:idx_questions_survey_order,priority:2" json:"order_index"`
	Required             bool         `gorm:"not null" json:"required"`
	MaxResponses         *int         `json:"max_responses,omitempty"`
	AllowMultipleAnswers bool         `gorm:"not null" json:"allow_multiple_answers"`
	Responses            []Response   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
