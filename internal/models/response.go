package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Response is one user's answer to one question.
//
// SingleKey carries the author's id when the owning survey disallows multiple
// responses and is NULL otherwise, so the unique index on (question_id, single_key)
// enforces one response per user only where the survey asks for it.
type Response struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_responses_question_single,priority:1" json:"question_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	SingleKey  *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_responses_question_single,priority:2" json:"-"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	IPAddress  string     `gorm:"size:45" json:"-"`
	UserAgent  string     `gorm:"size:500" json:"-"`
	User       *User      `gorm:"foreignKey:UserID" json:"author,omitempty"`
	Upvotes    []Upvote   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
