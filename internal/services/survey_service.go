package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SurveyService struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewSurveyService(db *gorm.DB, clk clock.Clock) *SurveyService {
	return &SurveyService{db: db, clock: clk}
}

// ListOpenSurveys returns surveys accepting responses at now, newest first.
func (s *SurveyService) ListOpenSurveys(now time.Time) ([]models.Survey, error) {
	var surveys []models.Survey
	err := s.db.
		Where("status = ?", models.StatusActive).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date >= ?", now).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Order("created_at DESC, id ASC").
		Find(&surveys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open surveys: %w", err)
	}
	return surveys, nil
}

// ListSurveys is the admin listing, optionally filtered by status and a title substring.
func (s *SurveyService) ListSurveys(status, title string, page, limit int) ([]models.Survey, int64, error) {
	page, limit = normalizePage(page, limit)

	query := s.db.Model(&models.Survey{})
	if status != "" {
		st := models.SurveyStatus(strings.ToUpper(status))
		if !st.Valid() {
			return nil, 0, invalid("unknown survey status %q", status)
		}
		query = query.Where("status = ?", st)
	}
	if t := strings.TrimSpace(title); t != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(t)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count surveys: %w", err)
	}

	var surveys []models.Survey
	if err := query.Order("created_at DESC, id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&surveys).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list surveys: %w", err)
	}
	return surveys, total, nil
}

// GetSurvey loads a survey with its questions in order.
func (s *SurveyService) GetSurvey(id uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		First(&survey, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("survey not found")
		}
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}
	return &survey, nil
}

func (s *SurveyService) CreateSurvey(creatorID uuid.UUID, req *dto.CreateSurveyRequest) (*models.Survey, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateSurveyFields(title, req.Description, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	survey := models.Survey{
		Title:                  title,
		Description:            req.Description,
		Status:                 models.StatusDraft,
		StartDate:              utcPtr(req.StartDate),
		EndDate:                utcPtr(req.EndDate),
		AllowMultipleResponses: req.AllowMultipleResponses,
		CreatedByID:            creatorID,
	}
	if err := s.db.Create(&survey).Error; err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}

	slog.Info("survey created", "action", "create_survey", "survey_id", survey.ID, "user_id", creatorID)
	return &survey, nil
}

func (s *SurveyService) UpdateSurvey(id uuid.UUID, req *dto.UpdateSurveyRequest) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSurvey(tx, id, &survey); err != nil {
			return err
		}
		if survey.Frozen() {
			return ruleViolation("cannot modify a %s survey", survey.Status)
		}

		if req.Title != nil {
			survey.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			survey.Description = *req.Description
		}
		if req.ClearStartDate {
			survey.StartDate = nil
		} else if req.StartDate != nil {
			survey.StartDate = utcPtr(req.StartDate)
		}
		if req.ClearEndDate {
			survey.EndDate = nil
		} else if req.EndDate != nil {
			survey.EndDate = utcPtr(req.EndDate)
		}
		if req.AllowMultipleResponses != nil {
			survey.AllowMultipleResponses = *req.AllowMultipleResponses
		}

		if err := validateSurveyFields(survey.Title, survey.Description, survey.StartDate, survey.EndDate); err != nil {
			return err
		}
		if survey.Status == models.StatusScheduled && survey.StartDate == nil {
			return ruleViolation("a scheduled survey requires a start date")
		}

		survey.UpdatedAt = s.clock.Now()
		return tx.Select("title", "description", "start_date", "end_date", "allow_multiple_responses", "updated_at").
			Updates(&survey).Error
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to update survey")
	}
	return &survey, nil
}

// DeleteSurvey removes a survey and everything it owns. Live surveys cannot be deleted.
func (s *SurveyService) DeleteSurvey(id uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var survey models.Survey
		if err := lockSurvey(tx, id, &survey); err != nil {
			return err
		}
		if survey.Status == models.StatusActive {
			return ruleViolation("cannot delete an active survey; close it first")
		}

		questionIDs := tx.Model(&models.Question{}).Select("id").Where("survey_id = ?", id)
		responseIDs := tx.Model(&models.Response{}).Select("id").Where("question_id IN (?)", questionIDs)

		if err := tx.Where("response_id IN (?)", responseIDs).Delete(&models.Upvote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("survey_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&survey).Error
	})
	if err != nil {
		return wrapStorage(err, "failed to delete survey")
	}

	slog.Info("survey deleted", "action", "delete_survey", "survey_id", id)
	return nil
}

// Publish moves a DRAFT or SCHEDULED survey to ACTIVE.
func (s *SurveyService) Publish(id uuid.UUID) (*models.Survey, error) {
	return s.transition(id, models.StatusActive, nil)
}

// Schedule sets the start date and moves a DRAFT survey to SCHEDULED.
func (s *SurveyService) Schedule(id uuid.UUID, startDate time.Time) (*models.Survey, error) {
	if startDate.IsZero() {
		return nil, invalid("start date is required")
	}
	return s.transition(id, models.StatusScheduled, func(survey *models.Survey) error {
		start := startDate.UTC()
		if survey.EndDate != nil && !survey.EndDate.After(start) {
			return invalid("start date must be before the end date")
		}
		survey.StartDate = &start
		return nil
	})
}

// Close moves any survey to CLOSED.
func (s *SurveyService) Close(id uuid.UUID) (*models.Survey, error) {
	return s.transition(id, models.StatusClosed, nil)
}

func (s *SurveyService) transition(id uuid.UUID, target models.SurveyStatus, prepare func(*models.Survey) error) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSurvey(tx, id, &survey); err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(&survey); err != nil {
				return err
			}
		}

		var questions int64
		if err := tx.Model(&models.Question{}).Where("survey_id = ?", id).Count(&questions).Error; err != nil {
			return err
		}

		from := survey.Status
		if err := applyTransition(&survey, target, questions, s.clock.Now()); err != nil {
			return err
		}
		if err := tx.Select("status", "start_date", "updated_at").Updates(&survey).Error; err != nil {
			return err
		}

		slog.Info("survey status changed", "action", "transition", "survey_id", id, "from", from, "to", target)
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to change survey status")
	}
	return &survey, nil
}

// ActivateDue promotes SCHEDULED surveys whose start date has arrived.
// Surveys without questions stay SCHEDULED and are reported at WARN.
func (s *SurveyService) ActivateDue(now time.Time) (int, error) {
	var due []models.Survey
	if err := s.db.
		Where("status = ? AND start_date IS NOT NULL AND start_date <= ?", models.StatusScheduled, now).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to find due surveys: %w", err)
	}

	activated := 0
	for _, candidate := range due {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var survey models.Survey
			if err := lockSurvey(tx, candidate.ID, &survey); err != nil {
				return err
			}
			// Re-checked under the lock; an admin may have moved it meanwhile.
			if survey.Status != models.StatusScheduled {
				return nil
			}

			var questions int64
			if err := tx.Model(&models.Question{}).Where("survey_id = ?", survey.ID).Count(&questions).Error; err != nil {
				return err
			}
			if err := applyTransition(&survey, models.StatusActive, questions, now); err != nil {
				return err
			}
			if err := tx.Select("status", "updated_at").Updates(&survey).Error; err != nil {
				return err
			}
			activated++
			return nil
		})
		if err != nil {
			if KindOf(err) != "" {
				slog.Warn("scheduled survey not activated", "action", "activate_due", "survey_id", candidate.ID, "error", err)
				continue
			}
			return activated, fmt.Errorf("failed to activate survey %s: %w", candidate.ID, err)
		}
	}

	if activated > 0 {
		slog.Info("scheduled surveys activated", "action", "activate_due", "count", activated)
	}
	return activated, nil
}

// StartScheduler runs ActivateDue every interval until done is closed.
func (s *SurveyService) StartScheduler(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.ActivateDue(s.clock.Now()); err != nil {
					slog.Error("schedule activation failed", "action", "activate_due", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
}

func lockSurvey(tx *gorm.DB, id uuid.UUID, survey *models.Survey) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(survey, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("survey not found")
	}
	return err
}

func validateSurveyFields(title, description string, start, end *time.Time) error {
	if title == "" {
		return invalid("title is required")
	}
	if utf8.RuneCountInString(title) > 200 {
		return invalid("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(description) > 1000 {
		return invalid("description must be at most 1000 characters")
	}
	if start != nil && end != nil && !end.After(*start) {
		return invalid("end date must be after the start date")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// wrapStorage passes service errors through and wraps everything else.
func wrapStorage(err error, msg string) error {
	if KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
