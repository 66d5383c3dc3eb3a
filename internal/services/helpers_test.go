package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	cfg   *config.Config
	clock *clock.Fake

	auth      *AuthService
	surveys   *SurveyService
	questions *QuestionService
	responses *ResponseService
	upvotes   *UpvoteService
	ranking   *RankingService
	stats     *StatisticsService
}

// setupTestEnvironment opens a fresh SQLite file per test and wires every service to it.
func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	bcryptCost = bcrypt.MinCost

	cfg := &config.Config{
		DBDriver:            "sqlite",
		SQLitePath:          filepath.Join(t.TempDir(), "survey.db"),
		JWTSecret:           "test-secret",
		JWTAccessExpiry:     15 * time.Minute,
		JWTRefreshExpiry:    24 * time.Hour,
		ResponseMaxLength:   2000,
		TopResponsesDefault: 5,
		AllowSelfUpvote:     true,
	}
	clk := clock.NewFake(testStart)

	db, err := database.Connect(cfg, clk)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testEnv{
		db:        db,
		cfg:       cfg,
		clock:     clk,
		auth:      NewAuthService(db, cfg, clk),
		surveys:   NewSurveyService(db, clk),
		questions: NewQuestionService(db, clk),
		responses: NewResponseService(db, cfg, clk, NewContentFilter()),
		upvotes:   NewUpvoteService(db, cfg, clk),
		ranking:   NewRankingService(db),
		stats:     NewStatisticsService(db),
	}
}

func (e *testEnv) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	user := models.User{Username: username, Password: "unused", Role: role, Active: true}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *testEnv) createSurvey(t *testing.T, allowMultiple bool) *models.Survey {
	t.Helper()
	admin := e.createUser(t, "admin-"+uuid.NewString()[:8], models.RoleAdmin)
	survey, err := e.surveys.CreateSurvey(admin.ID, &dto.CreateSurveyRequest{
		Title:                  "Team retrospective",
		AllowMultipleResponses: allowMultiple,
	})
	require.NoError(t, err)
	return survey
}

func (e *testEnv) addQuestion(t *testing.T, surveyID uuid.UUID, text string, qType models.QuestionType) *models.Question {
	t.Helper()
	q, err := e.questions.AddQuestion(surveyID, &dto.QuestionRequest{Text: text, Type: string(qType)})
	require.NoError(t, err)
	return q
}

// activeQuestion returns a published survey with one question of the given type.
func (e *testEnv) activeQuestion(t *testing.T, allowMultiple bool, qType models.QuestionType) (*models.Survey, *models.Question) {
	t.Helper()
	survey := e.createSurvey(t, allowMultiple)
	q := e.addQuestion(t, survey.ID, "How did it go?", qType)
	survey, err := e.surveys.Publish(survey.ID)
	require.NoError(t, err)
	return survey, q
}

func (e *testEnv) submit(t *testing.T, questionID, userID uuid.UUID, text string) *models.Response {
	t.Helper()
	r, err := e.responses.Submit(questionID, &userID, text, RequestMeta{})
	require.NoError(t, err)
	return r
}
