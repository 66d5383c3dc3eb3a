package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "test.db")}
	db, err := Connect(cfg, clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"}, clock.Real())
	assert.Error(t, err)
}

func TestUpvoteUniqueIndexIsEnforced(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Ping(db))

	user := models.User{Username: "alice", Password: "x", Role: models.RoleUser, Active: true}
	require.NoError(t, db.Create(&user).Error)
	survey := models.Survey{Title: "Survey", CreatedByID: user.ID}
	require.NoError(t, db.Create(&survey).Error)
	question := models.Question{SurveyID: survey.ID, Text: "Why?", Type: models.QuestionText}
	require.NoError(t, db.Create(&question).Error)
	response := models.Response{QuestionID: question.ID, UserID: user.ID, Text: "because"}
	require.NoError(t, db.Create(&response).Error)

	require.NoError(t, db.Create(&models.Upvote{UserID: user.ID, ResponseID: response.ID}).Error)
	err := db.Create(&models.Upvote{UserID: user.ID, ResponseID: response.ID}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestUpvoteReferencesUser(t *testing.T) {
	db := openTestDB(t)
	assert.True(t, db.Migrator().HasConstraint(&models.Upvote{}, "User"))

	user := models.User{Username: "carol", Password: "x", Role: models.RoleUser, Active: true}
	require.NoError(t, db.Create(&user).Error)
	survey := models.Survey{Title: "Survey", CreatedByID: user.ID}
	require.NoError(t, db.Create(&survey).Error)
	question := models.Question{SurveyID: survey.ID, Text: "Why?", Type: models.QuestionText}
	require.NoError(t, db.Create(&question).Error)
	response := models.Response{QuestionID: question.ID, UserID: user.ID, Text: "because"}
	require.NoError(t, db.Create(&response).Error)

	assert.Error(t, db.Create(&models.Upvote{UserID: uuid.New(), ResponseID: response.ID}).Error)
	assert.NoError(t, db.Create(&models.Upvote{UserID: user.ID, ResponseID: response.ID}).Error)
}

func TestSingleKeyUniqueIndexOnlyAppliesWhenSet(t *testing.T) {
	db := openTestDB(t)

	user := models.User{Username: "bob", Password: "x", Role: models.RoleUser, Active: true}
	require.NoError(t, db.Create(&user).Error)
	survey := models.Survey{Title: "Survey", CreatedByID: user.ID}
	require.NoError(t, db.Create(&survey).Error)
	question := models.Question{SurveyID: survey.ID, Text: "Why?", Type: models.QuestionText}
	require.NoError(t, db.Create(&question).Error)

	// NULL keys never collide.
	require.NoError(t, db.Create(&models.Response{QuestionID: question.ID, UserID: user.ID, Text: "a"}).Error)
	require.NoError(t, db.Create(&models.Response{QuestionID: question.ID, UserID: user.ID, Text: "b"}).Error)

	key := user.ID
	require.NoError(t, db.Create(&models.Response{QuestionID: question.ID, UserID: user.ID, SingleKey: &key, Text: "c"}).Error)
	err := db.Create(&models.Response{QuestionID: question.ID, UserID: user.ID, SingleKey: &key, Text: "d"}).Error
	assert.True(t, IsUniqueViolation(err))
}

func TestQuestionOrderIndexIsUniquePerSurvey(t *testing.T) {
	db := openTestDB(t)

	surveyID := uuid.New()
	require.NoError(t, db.Create(&models.Survey{ID: surveyID, Title: "Survey", CreatedByID: uuid.New()}).Error)
	require.NoError(t, db.Create(&models.Question{SurveyID: surveyID, Text: "One", Type: models.QuestionText, OrderIndex: 0}).Error)
	err := db.Create(&models.Question{SurveyID: surveyID, Text: "Two", Type: models.QuestionText, OrderIndex: 0}).Error
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "idx_upvotes_user_response"`)))
}
