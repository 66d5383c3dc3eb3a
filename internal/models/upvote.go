package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Upvote is one user's endorsement of one response. The (user_id, response_id)
// pair is unique at the database level.
type Upvote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_upvotes_user_response,priority:1" json:"user_id"`
	ResponseID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_upvotes_user_response,priority:2" json:"response_id"`
	IPAddress  string    `gorm:"size:45" json:"-"`
	User       *User     `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *Upvote) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
