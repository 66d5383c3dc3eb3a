package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UpvoteService is the upvote ledger. The unique index on (user_id, response_id)
// is the final word on duplicates; the existence check only avoids a failed insert.
type UpvoteService struct {
	db    *gorm.DB
	cfg   *config.Config
	clock clock.Clock
}

func NewUpvoteService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *UpvoteService {
	return &UpvoteService{db: db, cfg: cfg, clock: clk}
}

// Upvote records userID's upvote on responseID. It returns false, without an
// error, when the upvote already exists.
func (s *UpvoteService) Upvote(responseID, userID uuid.UUID, ipAddress string) (bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		response, err := s.checkLedger(tx, responseID, userID)
		if err != nil {
			return err
		}
		if !s.cfg.AllowSelfUpvote && response.UserID == userID {
			return ruleViolation("cannot upvote your own response")
		}

		var existing int64
		if err := tx.Model(&models.Upvote{}).
			Where("user_id = ? AND response_id = ?", userID, responseID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		upvote := models.Upvote{
			UserID:     userID,
			ResponseID: responseID,
			IPAddress:  ipAddress,
			CreatedAt:  s.clock.Now(),
		}
		if err := tx.Create(&upvote).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			slog.Warn("duplicate upvote rejected by constraint",
				"action", "upvote", "event", "concurrency_conflict",
				"response_id", responseID, "user_id", userID, "error", err)
			return false, conflict(err, "upvote already recorded")
		}
		return false, wrapStorage(err, "failed to upvote")
	}

	if created {
		slog.Info("upvote recorded", "action", "upvote", "response_id", responseID, "user_id", userID)
	}
	return created, nil
}

// Revoke removes userID's upvote on responseID, returning false when there was none.
func (s *UpvoteService) Revoke(responseID, userID uuid.UUID) (bool, error) {
	removed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.checkLedger(tx, responseID, userID); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND response_id = ?", userID, responseID).Delete(&models.Upvote{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, wrapStorage(err, "failed to revoke upvote")
	}

	if removed {
		slog.Info("upvote revoked", "action", "revoke_upvote", "response_id", responseID, "user_id", userID)
	}
	return removed, nil
}

// UpvotedBy reports which of responseIDs userID has upvoted.
func (s *UpvoteService) UpvotedBy(userID uuid.UUID, responseIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(responseIDs))
	if len(responseIDs) == 0 {
		return result, nil
	}

	var ids []uuid.UUID
	if err := s.db.Model(&models.Upvote{}).
		Where("user_id = ? AND response_id IN ?", userID, responseIDs).
		Pluck("response_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load upvotes: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// CountFor returns the current upvote count of a response.
func (s *UpvoteService) CountFor(responseID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Upvote{}).Where("response_id = ?", responseID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return count, nil
}

// checkLedger runs the checks shared by upvote and revoke.
func (s *UpvoteService) checkLedger(tx *gorm.DB, responseID, userID uuid.UUID) (*models.Response, error) {
	var response models.Response
	if err := tx.First(&response, "id = ?", responseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("response not found")
		}
		return nil, err
	}

	if userID == uuid.Nil {
		return nil, authRequired("authentication required to upvote")
	}
	var user models.User
	if err := tx.Select("id", "active").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authRequired("authentication required to upvote")
		}
		return nil, err
	}
	if !user.Active {
		return nil, authRequired("account is disabled")
	}

	survey, err := surveyOfQuestion(tx, response.QuestionID)
	if err != nil {
		return nil, err
	}
	if survey.Status == models.StatusClosed {
		return nil, ruleViolation("survey is closed")
	}
	return &response, nil
}
