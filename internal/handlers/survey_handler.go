package handlers

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SurveyHandler serves the participant side: browsing, answering, upvoting.
type SurveyHandler struct {
	cfg       *config.Config
	clock     clock.Clock
	surveys   *services.SurveyService
	responses *services.ResponseService
	upvotes   *services.UpvoteService
	ranking   *services.RankingService
}

func NewSurveyHandler(
	cfg *config.Config,
	clk clock.Clock,
	surveys *services.SurveyService,
	responses *services.ResponseService,
	upvotes *services.UpvoteService,
	ranking *services.RankingService,
) *SurveyHandler {
	return &SurveyHandler{
		cfg:       cfg,
		clock:     clk,
		surveys:   surveys,
		responses: responses,
		upvotes:   upvotes,
		ranking:   ranking,
	}
}

func (h *SurveyHandler) ListOpen(c *fiber.Ctx) error {
	surveys, err := h.surveys.ListOpenSurveys(h.clock.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"surveys": surveys})
}

// Get hides drafts from everyone but admins.
func (h *SurveyHandler) Get(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid survey id")
	}

	survey, err := h.surveys.GetSurvey(id)
	if err != nil {
		return respondError(c, err)
	}
	if survey.Status == models.StatusDraft && !middleware.GetIdentity(c).IsAdmin() {
		return respondError(c, services.ErrNotFound)
	}

	return c.JSON(fiber.Map{
		"survey":              survey,
		"accepting_responses": services.CanAcceptResponses(survey, h.clock.Now()),
	})
}

func (h *SurveyHandler) TopResponses(c *fiber.Ctx) error {
	questionID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}
	k := c.QueryInt("k", h.cfg.TopResponsesDefault)

	ranked, err := h.ranking.TopResponses(questionID, k)
	if err != nil {
		return respondError(c, err)
	}

	upvoted := map[uuid.UUID]bool{}
	if identity := middleware.GetIdentity(c); identity != nil && len(ranked) > 0 {
		ids := make([]uuid.UUID, len(ranked))
		for i, r := range ranked {
			ids[i] = r.Response.ID
		}
		if upvoted, err = h.upvotes.UpvotedBy(identity.UserID, ids); err != nil {
			return respondError(c, err)
		}
	}

	out := make([]dto.RankedResponse, len(ranked))
	for i, r := range ranked {
		out[i] = dto.RankedResponse{
			ID:          r.Response.ID,
			QuestionID:  r.Response.QuestionID,
			Text:        r.Response.Text,
			UpvoteCount: r.UpvoteCount,
			HasUpvoted:  upvoted[r.Response.ID],
			CreatedAt:   r.Response.CreatedAt,
		}
		if r.Response.User != nil {
			author := services.ToUserResponse(r.Response.User)
			author.Email = nil
			author.LastLoginAt = nil
			out[i].Author = &author
		}
	}

	return c.JSON(dto.TopResponsesResponse{QuestionID: questionID, K: k, Responses: out})
}

func (h *SurveyHandler) SubmitResponse(c *fiber.Ctx) error {
	questionID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}
	var req dto.SubmitResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	var userID *uuid.UUID
	if identity := middleware.GetIdentity(c); identity != nil {
		userID = &identity.UserID
	}

	response, err := h.responses.Submit(questionID, userID, req.Text, services.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *SurveyHandler) Upvote(c *fiber.Ctx) error {
	responseID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid response id")
	}
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return respondError(c, services.ErrAuthenticationRequired)
	}

	created, err := h.upvotes.Upvote(responseID, identity.UserID, c.IP())
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.UpvoteResponse{ResponseID: responseID, Changed: created, Upvoted: true})
}

func (h *SurveyHandler) RevokeUpvote(c *fiber.Ctx) error {
	responseID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid response id")
	}
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return respondError(c, services.ErrAuthenticationRequired)
	}

	removed, err := h.upvotes.Revoke(responseID, identity.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.UpvoteResponse{ResponseID: responseID, Changed: removed, Upvoted: false})
}
