package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultResponseMaxLength = 2000

// RequestMeta is optional request context stored alongside a response.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ResponseService is the submission guard: every response passes its checks
// inside one transaction that holds the question row.
type ResponseService struct {
	db     *gorm.DB
	cfg    *config.Config
	clock  clock.Clock
	filter *ContentFilter
}

// NewResponseService builds the guard. filter may be nil; it is only consulted
// when the content filter is enabled in cfg.
func NewResponseService(db *gorm.DB, cfg *config.Config, clk clock.Clock, filter *ContentFilter) *ResponseService {
	return &ResponseService{db: db, cfg: cfg, clock: clk, filter: filter}
}

// Submit records userID's answer to questionID. Checks run in a fixed order and
// stop at the first failure: question, open survey, user, duplicate, payload.
func (s *ResponseService) Submit(questionID uuid.UUID, userID *uuid.UUID, text string, meta RequestMeta) (*models.Response, error) {
	var response models.Response
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.Select("id", "survey_id").First(&question, "id = ?", questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("question not found")
			}
			return err
		}

		// Survey before question, the same order the admin paths lock in.
		// The shared lock makes a concurrent Close wait for this submit.
		var survey models.Survey
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&survey, "id = ?", question.SurveyID).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&question, "id = ?", questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("question not found")
			}
			return err
		}
		now := s.clock.Now()
		if !CanAcceptResponses(&survey, now) {
			return ruleViolation("survey not accepting responses")
		}

		if userID == nil || *userID == uuid.Nil {
			return authRequired("authentication required to respond")
		}
		var user models.User
		if err := tx.Select("id", "active").First(&user, "id = ?", *userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return authRequired("authentication required to respond")
			}
			return err
		}
		if !user.Active {
			return authRequired("account is disabled")
		}

		if !survey.AllowMultipleResponses {
			var existing int64
			if err := tx.Model(&models.Response{}).
				Where("question_id = ? AND user_id = ?", question.ID, user.ID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return ruleViolation("duplicate response")
			}
		}
		if question.MaxResponses != nil {
			var total int64
			if err := tx.Model(&models.Response{}).Where("question_id = ?", question.ID).Count(&total).Error; err != nil {
				return err
			}
			if total >= int64(*question.MaxResponses) {
				return ruleViolation("question has reached its response limit")
			}
		}

		body, err := s.validatePayload(&question, text)
		if err != nil {
			return err
		}

		response = models.Response{
			QuestionID: question.ID,
			UserID:     user.ID,
			Text:       body,
			IPAddress:  meta.IPAddress,
			UserAgent:  truncate(meta.UserAgent, 500),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if !survey.AllowMultipleResponses {
			key := user.ID
			response.SingleKey = &key
		}
		return tx.Create(&response).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			slog.Warn("duplicate response rejected by constraint",
				"action", "submit_response", "event", "concurrency_conflict",
				"question_id", questionID, "user_id", userID, "error", err)
			return nil, conflict(err, "duplicate response")
		}
		return nil, wrapStorage(err, "failed to submit response")
	}

	slog.Info("response submitted", "action", "submit_response", "question_id", questionID, "response_id", response.ID, "user_id", response.UserID)
	return &response, nil
}

// validatePayload trims the text and checks it against the length bound, the
// question type and, when enabled, the content filter.
func (s *ResponseService) validatePayload(question *models.Question, text string) (string, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", invalid("response text is required")
	}
	maxLen := s.cfg.ResponseMaxLength
	if maxLen <= 0 {
		maxLen = defaultResponseMaxLength
	}
	if utf8.RuneCountInString(body) > maxLen {
		return "", invalid("response text must be at most %d characters", maxLen)
	}

	switch question.Type {
	case models.QuestionRating:
		n, err := strconv.Atoi(body)
		if err != nil || n < 1 || n > 5 {
			return "", invalid("rating must be a whole number from 1 to 5")
		}
	case models.QuestionYesNo:
		if !strings.EqualFold(body, "yes") && !strings.EqualFold(body, "no") {
			return "", invalid("answer must be yes or no")
		}
	}

	if s.cfg.ResponseContentFilter && s.filter != nil {
		if ok, reason := s.filter.Check(body); !ok {
			return "", invalid("%s", RejectionMessage(reason))
		}
	}
	return body, nil
}

// ListResponses returns a question's responses oldest first, with authors.
func (s *ResponseService) ListResponses(questionID uuid.UUID) ([]models.Response, error) {
	var count int64
	if err := s.db.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	if count == 0 {
		return nil, notFound("question not found")
	}

	var responses []models.Response
	if err := s.db.Preload("User").
		Where("question_id = ?", questionID).
		Order("created_at ASC, id ASC").
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return responses, nil
}

// DeleteResponse removes a response and its upvotes. Responses of a live survey stay put.
func (s *ResponseService) DeleteResponse(responseID uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var response models.Response
		if err := tx.First(&response, "id = ?", responseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("response not found")
			}
			return err
		}

		survey, err := surveyOfQuestion(tx, response.QuestionID)
		if err != nil {
			return err
		}
		if survey.Status == models.StatusActive {
			return ruleViolation("cannot delete responses of an active survey")
		}

		if err := tx.Where("response_id = ?", responseID).Delete(&models.Upvote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&response).Error
	})
	if err != nil {
		return wrapStorage(err, "failed to delete response")
	}

	slog.Info("response deleted", "action", "delete_response", "response_id", responseID)
	return nil
}

func surveyOfQuestion(tx *gorm.DB, questionID uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	err := tx.Where("id = (?)", tx.Model(&models.Question{}).Select("survey_id").Where("id = ?", questionID)).
		First(&survey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("survey not found")
		}
		return nil, err
	}
	return &survey, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
