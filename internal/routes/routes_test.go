package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	app   *fiber.App
	db    *gorm.DB
	clock *clock.Fake
}

// newTestServer wires the full stack against a temp SQLite file. The fake clock
// starts at wall time because the JWT middleware checks expiry against it.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		DBDriver:            "sqlite",
		SQLitePath:          filepath.Join(t.TempDir(), "survey.db"),
		JWTSecret:           "test-secret",
		JWTAccessExpiry:     15 * time.Minute,
		JWTRefreshExpiry:    24 * time.Hour,
		ResponseMaxLength:   2000,
		TopResponsesDefault: 5,
		AllowSelfUpvote:     true,
		CORSOrigins:         "*",
	}
	clk := clock.NewFake(time.Now().UTC())

	db, err := database.Connect(cfg, clk)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	authService := services.NewAuthService(db, cfg, clk)
	surveyService := services.NewSurveyService(db, clk)
	questionService := services.NewQuestionService(db, clk)
	responseService := services.NewResponseService(db, cfg, clk, services.NewContentFilter())
	upvoteService := services.NewUpvoteService(db, cfg, clk)
	rankingService := services.NewRankingService(db)
	statisticsService := services.NewStatisticsService(db)

	app := NewApp(cfg)
	Setup(app, cfg, authService, Handlers{
		Auth:   handlers.NewAuthHandler(authService),
		Health: handlers.NewHealthHandler(db, clk),
		Survey: handlers.NewSurveyHandler(cfg, clk, surveyService, responseService, upvoteService, rankingService),
		Admin:  handlers.NewAdminHandler(authService, surveyService, questionService, responseService, statisticsService),
	}, Limits{})

	return &testServer{app: app, db: db, clock: clk}
}

// do sends a JSON request and decodes the JSON reply into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, username string) dto.AuthResponse {
	t.Helper()
	var auth dto.AuthResponse
	status := s.do(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Username: username, Password: "secret123",
	}, &auth)
	require.Equal(t, fiber.StatusCreated, status)
	return auth
}

// registerAdmin registers a user and promotes it in the database; the role is
// read from the database on every request, so the issued token carries over.
func (s *testServer) registerAdmin(t *testing.T, username string) dto.AuthResponse {
	t.Helper()
	auth := s.register(t, username)
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", auth.User.ID).
		Update("role", models.RoleAdmin).Error)
	return auth
}

// openQuestion creates and publishes a one-question TEXT survey.
func (s *testServer) openQuestion(t *testing.T, adminToken string) (models.Survey, models.Question) {
	t.Helper()

	var survey models.Survey
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, "/api/admin/surveys", adminToken,
		dto.CreateSurveyRequest{Title: "Team retrospective"}, &survey))

	var question models.Question
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, "/api/admin/surveys/"+survey.ID.String()+"/questions", adminToken,
		dto.QuestionRequest{Text: "What went well?", Type: string(models.QuestionText)}, &question))

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPost, "/api/admin/surveys/"+survey.ID.String()+"/publish", adminToken, nil, &survey))
	require.Equal(t, models.StatusActive, survey.Status)
	return survey, question
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var health dto.HealthResponse
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/api/health", "", nil, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DB)
}

func TestParticipantRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	path := "/api/questions/" + uuid.NewString() + "/responses"

	var errResp dto.ErrorResponse
	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodPost, path, "", dto.SubmitResponseRequest{Text: "hi"}, &errResp))
	assert.True(t, errResp.Error)
	assert.Equal(t, string(services.KindAuthenticationRequired), errResp.Kind)

	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodPost, path, "not-a-jwt", dto.SubmitResponseRequest{Text: "hi"}, nil))
	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodPost, "/api/responses/"+uuid.NewString()+"/upvote", "", nil, nil))
}

func TestDisabledAccountIsRejected(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "alice")

	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", user.User.ID).Update("active", false).Error)

	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodGet, "/api/auth/me", user.AccessToken, nil, nil))
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "alice")
	admin := s.registerAdmin(t, "root")

	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/surveys", "", nil, nil))

	var errResp dto.ErrorResponse
	assert.Equal(t, fiber.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/surveys", user.AccessToken, nil, &errResp))
	assert.Equal(t, string(services.KindAuthorizationDenied), errResp.Kind)

	var list dto.SurveyListResponse
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/api/admin/surveys", admin.AccessToken, nil, &list))
	assert.Equal(t, int64(0), list.Total)
}

func TestDraftSurveyHiddenFromParticipants(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "alice")
	admin := s.registerAdmin(t, "root")

	var survey models.Survey
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, "/api/admin/surveys", admin.AccessToken,
		dto.CreateSurveyRequest{Title: "Draft"}, &survey))

	path := "/api/surveys/" + survey.ID.String()
	assert.Equal(t, fiber.StatusNotFound, s.do(t, http.MethodGet, path, "", nil, nil))
	assert.Equal(t, fiber.StatusNotFound, s.do(t, http.MethodGet, path, user.AccessToken, nil, nil))
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, path, admin.AccessToken, nil, nil))
	assert.Equal(t, fiber.StatusBadRequest, s.do(t, http.MethodGet, "/api/surveys/not-a-uuid", "", nil, nil))
}

func TestPublishWithoutQuestionsIsConflict(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t, "root")

	var survey models.Survey
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, "/api/admin/surveys", admin.AccessToken,
		dto.CreateSurveyRequest{Title: "Empty"}, &survey))

	var errResp dto.ErrorResponse
	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPost, "/api/admin/surveys/"+survey.ID.String()+"/publish", admin.AccessToken, nil, &errResp))
	assert.Equal(t, string(services.KindBusinessRule), errResp.Kind)

	assert.Equal(t, fiber.StatusBadRequest, s.do(t, http.MethodPost, "/api/admin/surveys", admin.AccessToken,
		dto.CreateSurveyRequest{Title: ""}, nil))
}

func TestRespondUpvoteAndRankOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t, "root")
	alice := s.register(t, "alice")
	bob := s.register(t, "bobby")

	survey, question := s.openQuestion(t, admin.AccessToken)

	var open map[string][]models.Survey
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/api/surveys/open", "", nil, &open))
	require.Len(t, open["surveys"], 1)
	assert.Equal(t, survey.ID, open["surveys"][0].ID)

	respPath := "/api/questions/" + question.ID.String() + "/responses"

	var first models.Response
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, respPath, alice.AccessToken,
		dto.SubmitResponseRequest{Text: "Shipping on time"}, &first))
	assert.Equal(t, alice.User.ID, first.UserID)

	// single-response survey
	var errResp dto.ErrorResponse
	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPost, respPath, alice.AccessToken,
		dto.SubmitResponseRequest{Text: "Another one"}, &errResp))
	assert.Equal(t, string(services.KindBusinessRule), errResp.Kind)

	assert.Equal(t, fiber.StatusBadRequest, s.do(t, http.MethodPost, respPath, bob.AccessToken,
		dto.SubmitResponseRequest{Text: "   "}, nil))

	s.clock.Advance(time.Second)
	var second models.Response
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, respPath, bob.AccessToken,
		dto.SubmitResponseRequest{Text: "Pairing sessions"}, &second))

	upvotePath := "/api/responses/" + second.ID.String() + "/upvote"

	var vote dto.UpvoteResponse
	assert.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, upvotePath, alice.AccessToken, nil, &vote))
	assert.True(t, vote.Changed)
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodPost, upvotePath, alice.AccessToken, nil, &vote))
	assert.False(t, vote.Changed)
	assert.True(t, vote.Upvoted)

	topPath := "/api/questions/" + question.ID.String() + "/top?k=5"

	var top dto.TopResponsesResponse
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, topPath, alice.AccessToken, nil, &top))
	require.Len(t, top.Responses, 2)
	assert.Equal(t, second.ID, top.Responses[0].ID)
	assert.Equal(t, int64(1), top.Responses[0].UpvoteCount)
	assert.True(t, top.Responses[0].HasUpvoted)
	assert.Equal(t, first.ID, top.Responses[1].ID)
	assert.Equal(t, int64(0), top.Responses[1].UpvoteCount)
	require.NotNil(t, top.Responses[0].Author)
	assert.Nil(t, top.Responses[0].Author.Email)

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, topPath, "", nil, &top))
	assert.False(t, top.Responses[0].HasUpvoted)

	assert.Equal(t, fiber.StatusBadRequest, s.do(t, http.MethodGet, "/api/questions/"+question.ID.String()+"/top?k=-1", "", nil, nil))
	assert.Equal(t, fiber.StatusNotFound, s.do(t, http.MethodGet, "/api/questions/"+uuid.NewString()+"/top", "", nil, nil))

	// revoke is idempotent
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodDelete, upvotePath, alice.AccessToken, nil, &vote))
	assert.True(t, vote.Changed)
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodDelete, upvotePath, alice.AccessToken, nil, &vote))
	assert.False(t, vote.Changed)

	var stats dto.QuestionStatistics
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/api/admin/questions/"+question.ID.String()+"/statistics", admin.AccessToken, nil, &stats))
	assert.Equal(t, int64(2), stats.Responses)
	assert.Equal(t, int64(0), stats.Upvotes)
}

func TestClosedSurveyRejectsWritesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t, "root")
	alice := s.register(t, "alice")

	survey, question := s.openQuestion(t, admin.AccessToken)

	var response models.Response
	require.Equal(t, fiber.StatusCreated, s.do(t, http.MethodPost, "/api/questions/"+question.ID.String()+"/responses", alice.AccessToken,
		dto.SubmitResponseRequest{Text: "Before close"}, &response))

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPost, "/api/admin/surveys/"+survey.ID.String()+"/close", admin.AccessToken, nil, nil))

	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPost, "/api/questions/"+question.ID.String()+"/responses", admin.AccessToken,
		dto.SubmitResponseRequest{Text: "After close"}, nil))
	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPost, "/api/responses/"+response.ID.String()+"/upvote", admin.AccessToken, nil, nil))

	// closing again is an administrative override, not an error
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodPost, "/api/admin/surveys/"+survey.ID.String()+"/close", admin.AccessToken, nil, nil))

	// ranking stays readable after close
	assert.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/api/questions/"+question.ID.String()+"/top", "", nil, nil))
}

func TestAdminCannotDisableSelf(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t, "root")
	alice := s.register(t, "alice")

	active := false
	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPut, "/api/admin/users/"+admin.User.ID.String()+"/active", admin.AccessToken,
		dto.SetActiveRequest{Active: &active}, nil))

	var user dto.UserResponse
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/api/admin/users/"+alice.User.ID.String()+"/active", admin.AccessToken,
		dto.SetActiveRequest{Active: &active}, &user))
	assert.False(t, user.Active)

	assert.Equal(t, fiber.StatusUnauthorized, s.do(t, http.MethodGet, "/api/auth/me", alice.AccessToken, nil, nil))
}
