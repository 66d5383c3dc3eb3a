package handlers

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the survey console. Every route sits behind AdminRequired.
type AdminHandler struct {
	auth      *services.AuthService
	surveys   *services.SurveyService
	questions *services.QuestionService
	responses *services.ResponseService
	stats     *services.StatisticsService
}

func NewAdminHandler(
	auth *services.AuthService,
	surveys *services.SurveyService,
	questions *services.QuestionService,
	responses *services.ResponseService,
	stats *services.StatisticsService,
) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		surveys:   surveys,
		questions: questions,
		responses: responses,
		stats:     stats,
	}
}

// --- surveys ---

func (h *AdminHandler) ListSurveys(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	surveys, total, err := h.surveys.ListSurveys(c.Query("status"), c.Query("title"), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SurveyListResponse{Surveys: surveys, Total: total, Page: page, Limit: limit})
}

func (h *AdminHandler) GetSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	survey, err := h.surveys.GetSurvey(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(survey)
}

func (h *AdminHandler) CreateSurvey(c *fiber.Ctx) error {
	var req dto.CreateSurveyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	survey, err := h.surveys.CreateSurvey(middleware.GetIdentity(c).UserID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(survey)
}

func (h *AdminHandler) UpdateSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	var req dto.UpdateSurveyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	survey, err := h.surveys.UpdateSurvey(id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(survey)
}

func (h *AdminHandler) DeleteSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	if err := h.surveys.DeleteSurvey(id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) PublishSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	survey, err := h.surveys.Publish(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(survey)
}

func (h *AdminHandler) ScheduleSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	var req dto.ScheduleSurveyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	survey, err := h.surveys.Schedule(id, req.StartDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(survey)
}

func (h *AdminHandler) CloseSurvey(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	survey, err := h.surveys.Close(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(survey)
}

// --- questions ---

func (h *AdminHandler) AddQuestion(c *fiber.Ctx) error {
	surveyID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	var req dto.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	question, err := h.questions.AddQuestion(surveyID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(question)
}

func (h *AdminHandler) UpdateQuestion(c *fiber.Ctx) error {
	questionID, ok := parseID(c, "questionId")
	if !ok {
		return badRequest(c, "Invalid question id")
	}
	var req dto.UpdateQuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	question, err := h.questions.UpdateQuestion(questionID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(question)
}

func (h *AdminHandler) RemoveQuestion(c *fiber.Ctx) error {
	surveyID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	questionID, ok := parseID(c, "questionId")
	if !ok {
		return badRequest(c, "Invalid question id")
	}

	if err := h.questions.RemoveQuestion(surveyID, questionID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) ReorderQuestions(c *fiber.Ctx) error {
	surveyID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	var req dto.ReorderQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	questions, err := h.questions.Reorder(surveyID, req.QuestionIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"questions": questions})
}

// --- responses ---

func (h *AdminHandler) ListResponses(c *fiber.Ctx) error {
	questionID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}
	responses, err := h.responses.ListResponses(questionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"responses": responses})
}

func (h *AdminHandler) DeleteResponse(c *fiber.Ctx) error {
	responseID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid response id")
	}
	if err := h.responses.DeleteResponse(responseID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- statistics ---

func (h *AdminHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.stats.Overview()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

func (h *AdminHandler) SurveyStatistics(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}
	stats, err := h.stats.SurveyStatistics(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) QuestionStatistics(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}
	stats, err := h.stats.QuestionStatistics(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// --- users ---

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	users, total, err := h.auth.ListUsers(page, limit)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = services.ToUserResponse(&users[i])
	}
	return c.JSON(dto.UserListResponse{Users: out, Total: total, Page: page, Limit: limit})
}

func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.auth.SetRole(id, models.Role(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}

func (h *AdminHandler) SetActive(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id")
	}
	var req dto.SetActiveRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return badRequest(c, "active is required")
	}
	if identity := middleware.GetIdentity(c); identity != nil && identity.UserID == id && !*req.Active {
		return respondError(c, &services.Error{Kind: services.KindBusinessRule, Message: "cannot disable your own account"})
	}

	user, err := h.auth.SetActive(id, *req.Active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}
