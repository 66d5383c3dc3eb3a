package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSurveyValidation(t *testing.T) {
	env := setupTestEnvironment(t)
	creator := env.createUser(t, "creator", models.RoleAdmin)

	start := testStart.Add(time.Hour)
	before := testStart

	tests := []struct {
		name string
		req  dto.CreateSurveyRequest
	}{
		{"blank title", dto.CreateSurveyRequest{Title: "   "}},
		{"long title", dto.CreateSurveyRequest{Title: strings.Repeat("t", 201)}},
		{"long description", dto.CreateSurveyRequest{Title: "Valid title", Description: string(make([]rune, 1001))}},
		{"end before start", dto.CreateSurveyRequest{Title: "Valid title", StartDate: &start, EndDate: &before}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.surveys.CreateSurvey(creator.ID, &tt.req)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}

	survey, err := env.surveys.CreateSurvey(creator.ID, &dto.CreateSurveyRequest{Title: "  Quarterly pulse  "})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly pulse", survey.Title)
	assert.Equal(t, models.StatusDraft, survey.Status)
	assert.Equal(t, creator.ID, survey.CreatedByID)
	assert.Equal(t, testStart, survey.CreatedAt.UTC())
}

func TestPublishRequiresQuestions(t *testing.T) {
	env := setupTestEnvironment(t)
	survey := env.createSurvey(t, false)

	_, err := env.surveys.Publish(survey.ID)
	assert.True(t, errors.Is(err, ErrBusinessRule))

	got, err := env.surveys.GetSurvey(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)

	env.addQuestion(t, survey.ID, "What went well?", models.QuestionText)
	env.clock.Advance(time.Minute)

	published, err := env.surveys.Publish(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, published.Status)
	assert.Equal(t, env.clock.Now(), published.UpdatedAt.UTC())
}

func TestScheduleAndClose(t *testing.T) {
	env := setupTestEnvironment(t)
	survey := env.createSurvey(t, false)

	_, err := env.surveys.Schedule(survey.ID, time.Time{})
	assert.True(t, errors.Is(err, ErrValidation))

	start := testStart.Add(2 * time.Hour)
	scheduled, err := env.surveys.Schedule(survey.ID, start)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.StartDate)
	assert.True(t, start.Equal(*scheduled.StartDate))

	// Scheduling twice is not a valid transition.
	_, err = env.surveys.Schedule(survey.ID, start)
	assert.True(t, errors.Is(err, ErrBusinessRule))

	closed, err := env.surveys.Close(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	_, err = env.surveys.Publish(survey.ID)
	assert.True(t, errors.Is(err, ErrBusinessRule))
}

func TestCloseIsAllowedFromClosed(t *testing.T) {
	env := setupTestEnvironment(t)
	survey, _ := env.activeQuestion(t, false, models.QuestionText)

	first, err := env.surveys.Close(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, first.Status)

	env.clock.Advance(time.Minute)
	second, err := env.surveys.Close(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, second.Status)
	assert.Equal(t, env.clock.Now(), second.UpdatedAt.UTC())

	got, err := env.surveys.GetSurvey(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
}

func TestUpdateSurveyFrozenOnceActive(t *testing.T) {
	env := setupTestEnvironment(t)
	survey := env.createSurvey(t, false)

	title := "Renamed survey"
	updated, err := env.surveys.UpdateSurvey(survey.ID, &dto.UpdateSurveyRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	env.addQuestion(t, survey.ID, "What went well?", models.QuestionText)
	_, err = env.surveys.Publish(survey.ID)
	require.NoError(t, err)

	other := "Another name"
	_, err = env.surveys.UpdateSurvey(survey.ID, &dto.UpdateSurveyRequest{Title: &other})
	assert.True(t, errors.Is(err, ErrBusinessRule))

	_, err = env.surveys.Close(survey.ID)
	require.NoError(t, err)
	_, err = env.surveys.UpdateSurvey(survey.ID, &dto.UpdateSurveyRequest{Title: &other})
	assert.True(t, errors.Is(err, ErrBusinessRule))

	got, err := env.surveys.GetSurvey(survey.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
}

func TestDeleteSurveyCascades(t *testing.T) {
	env := setupTestEnvironment(t)
	survey, q := env.activeQuestion(t, true, models.QuestionText)
	alice := env.createUser(t, "alice", models.RoleUser)
	bob := env.createUser(t, "bob", models.RoleUser)

	r := env.submit(t, q.ID, alice.ID, "Good pairing sessions")
	_, err := env.upvotes.Upvote(r.ID, bob.ID, "")
	require.NoError(t, err)

	err = env.surveys.DeleteSurvey(survey.ID)
	assert.True(t, errors.Is(err, ErrBusinessRule), "active surveys cannot be deleted")

	_, err = env.surveys.Close(survey.ID)
	require.NoError(t, err)
	require.NoError(t, env.surveys.DeleteSurvey(survey.ID))

	_, err = env.surveys.GetSurvey(survey.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	for _, model := range []interface{}{&models.Question{}, &models.Response{}, &models.Upvote{}} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}

	assert.True(t, errors.Is(env.surveys.DeleteSurvey(uuid.New()), ErrNotFound))
}

func TestListOpenSurveysEvaluatesWindow(t *testing.T) {
	env := setupTestEnvironment(t)

	open, _ := env.activeQuestion(t, false, models.QuestionText)

	future := env.createSurvey(t, false)
	start := testStart.Add(time.Hour)
	_, err := env.surveys.UpdateSurvey(future.ID, &dto.UpdateSurveyRequest{StartDate: &start})
	require.NoError(t, err)
	env.addQuestion(t, future.ID, "Anything else?", models.QuestionText)
	_, err = env.surveys.Publish(future.ID)
	require.NoError(t, err)

	env.createSurvey(t, false) // draft

	surveys, err := env.surveys.ListOpenSurveys(env.clock.Now())
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, open.ID, surveys[0].ID)
	assert.Len(t, surveys[0].Questions, 1)

	surveys, err = env.surveys.ListOpenSurveys(start)
	require.NoError(t, err)
	assert.Len(t, surveys, 2)
}

func TestListSurveysFilters(t *testing.T) {
	env := setupTestEnvironment(t)
	env.activeQuestion(t, false, models.QuestionText)
	env.createSurvey(t, false)

	all, total, err := env.surveys.ListSurveys("", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	active, total, err := env.surveys.ListSurveys("active", "retro", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, models.StatusActive, active[0].Status)

	_, _, err = env.surveys.ListSurveys("ARCHIVED", "", 1, 10)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestActivateDue(t *testing.T) {
	env := setupTestEnvironment(t)

	ready := env.createSurvey(t, false)
	env.addQuestion(t, ready.ID, "Ready question", models.QuestionText)
	_, err := env.surveys.Schedule(ready.ID, testStart.Add(time.Hour))
	require.NoError(t, err)

	empty := env.createSurvey(t, false)
	_, err = env.surveys.Schedule(empty.ID, testStart.Add(time.Hour))
	require.NoError(t, err)

	n, err := env.surveys.ActivateDue(env.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(time.Hour)
	n, err = env.surveys.ActivateDue(env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.surveys.GetSurvey(ready.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.True(t, CanAcceptResponses(got, env.clock.Now()))

	got, err = env.surveys.GetSurvey(empty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, got.Status)
}

func TestStartSchedulerStops(t *testing.T) {
	env := setupTestEnvironment(t)
	survey := env.createSurvey(t, false)
	env.addQuestion(t, survey.ID, "Ready question", models.QuestionText)
	_, err := env.surveys.Schedule(survey.ID, testStart)
	require.NoError(t, err)

	done := make(chan struct{})
	env.surveys.StartScheduler(10*time.Millisecond, done)
	defer close(done)

	assert.Eventually(t, func() bool {
		got, err := env.surveys.GetSurvey(survey.ID)
		return err == nil && got.Status == models.StatusActive
	}, 2*time.Second, 20*time.Millisecond)
}
