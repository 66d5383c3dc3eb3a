package services

import (
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatisticsService answers admin analytics with COUNT queries; nothing is cached.
type StatisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

func (s *StatisticsService) QuestionStatistics(questionID uuid.UUID) (*dto.QuestionStatistics, error) {
	var count int64
	if err := s.db.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	if count == 0 {
		return nil, notFound("question not found")
	}

	stats := &dto.QuestionStatistics{QuestionID: questionID}
	if err := s.db.Model(&models.Response{}).Where("question_id = ?", questionID).Count(&stats.Responses).Error; err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	if err := s.db.Model(&models.Response{}).Where("question_id = ?", questionID).
		Distinct("user_id").Count(&stats.Respondents).Error; err != nil {
		return nil, fmt.Errorf("failed to count respondents: %w", err)
	}
	if err := s.db.Model(&models.Upvote{}).
		Joins("JOIN responses ON responses.id = upvotes.response_id").
		Where("responses.question_id = ?", questionID).
		Count(&stats.Upvotes).Error; err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return stats, nil
}

func (s *StatisticsService) SurveyStatistics(surveyID uuid.UUID) (*dto.SurveyStatistics, error) {
	var survey models.Survey
	if err := s.db.Select("id", "status").First(&survey, "id = ?", surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("survey not found")
		}
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}

	var questionIDs []uuid.UUID
	if err := s.db.Model(&models.Question{}).Where("survey_id = ?", surveyID).
		Order("order_index ASC").Pluck("id", &questionIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	stats := &dto.SurveyStatistics{
		SurveyID:    surveyID,
		Status:      string(survey.Status),
		Questions:   int64(len(questionIDs)),
		PerQuestion: make([]dto.QuestionStatistics, 0, len(questionIDs)),
	}
	for _, id := range questionIDs {
		qs, err := s.QuestionStatistics(id)
		if err != nil {
			return nil, err
		}
		stats.Responses += qs.Responses
		stats.Upvotes += qs.Upvotes
		stats.PerQuestion = append(stats.PerQuestion, *qs)
	}

	if len(questionIDs) > 0 {
		if err := s.db.Model(&models.Response{}).Where("question_id IN ?", questionIDs).
			Distinct("user_id").Count(&stats.Respondents).Error; err != nil {
			return nil, fmt.Errorf("failed to count respondents: %w", err)
		}
	}
	return stats, nil
}

func (s *StatisticsService) Overview() (*dto.Overview, error) {
	type statusCount struct {
		Status models.SurveyStatus
		Count  int64
	}
	var rows []statusCount
	if err := s.db.Model(&models.Survey{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count surveys: %w", err)
	}

	overview := &dto.Overview{SurveysByStatus: make(map[string]int64, len(models.SurveyStatuses))}
	for _, st := range models.SurveyStatuses {
		overview.SurveysByStatus[string(st)] = 0
	}
	for _, r := range rows {
		overview.SurveysByStatus[string(r.Status)] = r.Count
		overview.TotalSurveys += r.Count
	}

	if err := s.db.Model(&models.User{}).Count(&overview.Users).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.Model(&models.Response{}).Count(&overview.Responses).Error; err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	if err := s.db.Model(&models.Upvote{}).Count(&overview.Upvotes).Error; err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return overview, nil
}
