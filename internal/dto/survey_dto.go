package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSurveyRequest struct {
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	AllowMultipleResponses bool       `json:"allow_multiple_responses"`
}

// UpdateSurveyRequest is a partial update; nil fields are left unchanged.
// ClearStartDate/ClearEndDate unset the corresponding date.
type UpdateSurveyRequest struct {
	Title                  *string    `json:"title,omitempty"`
	Description            *string    `json:"description,omitempty"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	ClearStartDate         bool       `json:"clear_start_date,omitempty"`
	ClearEndDate           bool       `json:"clear_end_date,omitempty"`
	AllowMultipleResponses *bool      `json:"allow_multiple_responses,omitempty"`
}

type ScheduleSurveyRequest struct {
	StartDate time.Time `json:"start_date"`
}

type SurveyListResponse struct {
	Surveys interface{} `json:"surveys"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

type QuestionRequest struct {
	Text                 string `json:"text"`
	Type                 string `json:"type"`
	Required             bool   `json:"required"`
	MaxResponses         *int   `json:"max_responses,omitempty"`
	AllowMultipleAnswers bool   `json:"allow_multiple_answers"`
}

type UpdateQuestionRequest struct {
	Text                 *string `json:"text,omitempty"`
	Type                 *string `json:"type,omitempty"`
	Required             *bool   `json:"required,omitempty"`
	MaxResponses         *int    `json:"max_responses,omitempty"`
	ClearMaxResponses    bool    `json:"clear_max_responses,omitempty"`
	AllowMultipleAnswers *bool   `json:"allow_multiple_answers,omitempty"`
}

type ReorderQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids"`
}

type SubmitResponseRequest struct {
	Text string `json:"text"`
}

type RankedResponse struct {
	ID          uuid.UUID     `json:"id"`
	QuestionID  uuid.UUID     `json:"question_id"`
	Text        string        `json:"text"`
	Author      *UserResponse `json:"author,omitempty"`
	UpvoteCount int64         `json:"upvote_count"`
	HasUpvoted  bool          `json:"has_upvoted"`
	CreatedAt   time.Time     `json:"created_at"`
}

type TopResponsesResponse struct {
	QuestionID uuid.UUID        `json:"question_id"`
	K          int              `json:"k"`
	Responses  []RankedResponse `json:"responses"`
}

type UpvoteResponse struct {
	ResponseID uuid.UUID `json:"response_id"`
	Changed    bool      `json:"changed"`
	Upvoted    bool      `json:"upvoted"`
}

type QuestionStatistics struct {
	QuestionID  uuid.UUID `json:"question_id"`
	Responses   int64     `json:"responses"`
	Upvotes     int64     `json:"upvotes"`
	Respondents int64     `json:"respondents"`
}

type SurveyStatistics struct {
	SurveyID    uuid.UUID            `json:"survey_id"`
	Status      string               `json:"status"`
	Questions   int64                `json:"questions"`
	Responses   int64                `json:"responses"`
	Upvotes     int64                `json:"upvotes"`
	Respondents int64                `json:"respondents"`
	PerQuestion []QuestionStatistics `json:"per_question"`
}

type Overview struct {
	SurveysByStatus map[string]int64 `json:"surveys_by_status"`
	TotalSurveys    int64            `json:"total_surveys"`
	Users           int64            `json:"users"`
	Responses       int64            `json:"responses"`
	Upvotes         int64            `json:"upvotes"`
}
