package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionService maintains each survey's ordered question list. Order
// indices are always 0..n-1 with no gaps.
type QuestionService struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewQuestionService(db *gorm.DB, clk clock.Clock) *QuestionService {
	return &QuestionService{db: db, clock: clk}
}

func (s *QuestionService) ListQuestions(surveyID uuid.UUID) ([]models.Question, error) {
	var count int64
	if err := s.db.Model(&models.Survey{}).Where("id = ?", surveyID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}
	if count == 0 {
		return nil, notFound("survey not found")
	}

	var questions []models.Question
	if err := s.db.Where("survey_id = ?", surveyID).Order("order_index ASC").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

func (s *QuestionService) GetQuestion(id uuid.UUID) (*models.Question, error) {
	var question models.Question
	if err := s.db.First(&question, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("question not found")
		}
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	return &question, nil
}

// AddQuestion appends a question at orderIndex = current question count.
func (s *QuestionService) AddQuestion(surveyID uuid.UUID, req *dto.QuestionRequest) (*models.Question, error) {
	text := strings.TrimSpace(req.Text)
	qType := models.QuestionType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if err := validateQuestion(text, qType, req.MaxResponses); err != nil {
		return nil, err
	}

	var question models.Question
	err := s.db.Transaction(func(tx *gorm.DB) error {
		survey, err := s.lockEditable(tx, surveyID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Question{}).Where("survey_id = ?", survey.ID).Count(&count).Error; err != nil {
			return err
		}

		question = models.Question{
			SurveyID:             survey.ID,
			Text:                 text,
			Type:                 qType,
			OrderIndex:           int(count),
			Required:             req.Required,
			MaxResponses:         req.MaxResponses,
			AllowMultipleAnswers: req.AllowMultipleAnswers,
		}
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		return touchSurvey(tx, survey.ID, s.clock)
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to add question")
	}

	slog.Info("question added", "action", "add_question", "survey_id", surveyID, "question_id", question.ID)
	return &question, nil
}

func (s *QuestionService) UpdateQuestion(id uuid.UUID, req *dto.UpdateQuestionRequest) (*models.Question, error) {
	var question models.Question
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&question, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("question not found")
			}
			return err
		}
		if _, err := s.lockEditable(tx, question.SurveyID); err != nil {
			return err
		}

		if req.Text != nil {
			question.Text = strings.TrimSpace(*req.Text)
		}
		if req.Type != nil {
			question.Type = models.QuestionType(strings.ToUpper(strings.TrimSpace(*req.Type)))
		}
		if req.Required != nil {
			question.Required = *req.Required
		}
		if req.ClearMaxResponses {
			question.MaxResponses = nil
		} else if req.MaxResponses != nil {
			question.MaxResponses = req.MaxResponses
		}
		if req.AllowMultipleAnswers != nil {
			question.AllowMultipleAnswers = *req.AllowMultipleAnswers
		}
		if err := validateQuestion(question.Text, question.Type, question.MaxResponses); err != nil {
			return err
		}

		if err := tx.Select("text", "type", "required", "max_responses", "allow_multiple_answers", "updated_at").
			Updates(&question).Error; err != nil {
			return err
		}
		return touchSurvey(tx, question.SurveyID, s.clock)
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to update question")
	}
	return &question, nil
}

// RemoveQuestion deletes the question with its responses and closes the gap it
// leaves. Only ACTIVE surveys refuse removal; on CLOSED surveys it is an admin override.
func (s *QuestionService) RemoveQuestion(surveyID, questionID uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var survey models.Survey
		if err := lockSurvey(tx, surveyID, &survey); err != nil {
			return err
		}
		if survey.Status == models.StatusActive {
			return ruleViolation("cannot remove questions of an ACTIVE survey")
		}

		var question models.Question
		if err := tx.Where("id = ? AND survey_id = ?", questionID, surveyID).First(&question).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("question not found in survey")
			}
			return err
		}

		responseIDs := tx.Model(&models.Response{}).Select("id").Where("question_id = ?", questionID)
		if err := tx.Where("response_id IN (?)", responseIDs).Delete(&models.Upvote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", questionID).Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&question).Error; err != nil {
			return err
		}

		var remaining []models.Question
		if err := tx.Where("survey_id = ?", surveyID).Order("order_index ASC").Find(&remaining).Error; err != nil {
			return err
		}
		// Walking ascending, each target index is below every index still in
		// use after it, so the unique index never sees a collision.
		for i, q := range remaining {
			if q.OrderIndex == i {
				continue
			}
			if err := tx.Model(&models.Question{}).Where("id = ?", q.ID).Update("order_index", i).Error; err != nil {
				return err
			}
		}
		return touchSurvey(tx, surveyID, s.clock)
	})
	if err != nil {
		return wrapStorage(err, "failed to remove question")
	}

	slog.Info("question removed", "action", "remove_question", "survey_id", surveyID, "question_id", questionID)
	return nil
}

// Reorder assigns order indices following questionIDs, which must list every
// question of the survey exactly once.
func (s *QuestionService) Reorder(surveyID uuid.UUID, questionIDs []uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockEditable(tx, surveyID); err != nil {
			return err
		}

		var current []models.Question
		if err := tx.Where("survey_id = ?", surveyID).Find(&current).Error; err != nil {
			return err
		}
		if len(questionIDs) != len(current) {
			return invalid("reorder must list all %d questions exactly once", len(current))
		}
		known := make(map[uuid.UUID]bool, len(current))
		for _, q := range current {
			known[q.ID] = true
		}
		seen := make(map[uuid.UUID]bool, len(questionIDs))
		for _, id := range questionIDs {
			if !known[id] || seen[id] {
				return invalid("reorder must list all %d questions exactly once", len(current))
			}
			seen[id] = true
		}

		// Park everything on negative indices first so no intermediate state collides.
		for i, id := range questionIDs {
			if err := tx.Model(&models.Question{}).Where("id = ?", id).Update("order_index", -(i + 1)).Error; err != nil {
				return err
			}
		}
		for i, id := range questionIDs {
			if err := tx.Model(&models.Question{}).Where("id = ?", id).Update("order_index", i).Error; err != nil {
				return err
			}
		}
		if err := touchSurvey(tx, surveyID, s.clock); err != nil {
			return err
		}
		return tx.Where("survey_id = ?", surveyID).Order("order_index ASC").Find(&questions).Error
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to reorder questions")
	}
	return questions, nil
}

// lockEditable locks the survey row and rejects frozen surveys.
func (s *QuestionService) lockEditable(tx *gorm.DB, surveyID uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	if err := lockSurvey(tx, surveyID, &survey); err != nil {
		return nil, err
	}
	if survey.Frozen() {
		return nil, ruleViolation("cannot change questions of a %s survey", survey.Status)
	}
	return &survey, nil
}

func touchSurvey(tx *gorm.DB, surveyID uuid.UUID, clk clock.Clock) error {
	return tx.Model(&models.Survey{}).Where("id = ?", surveyID).Update("updated_at", clk.Now()).Error
}

func validateQuestion(text string, qType models.QuestionType, maxResponses *int) error {
	if n := utf8.RuneCountInString(text); n < 3 || n > 500 {
		return invalid("question text must be between 3 and 500 characters")
	}
	if !qType.Valid() {
		return invalid("unknown question type %q", qType)
	}
	if maxResponses != nil && *maxResponses < 1 {
		return invalid("max responses must be at least 1")
	}
	return nil
}
