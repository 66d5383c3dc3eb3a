package services

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
)

// CanAcceptResponses reports whether the survey is open for responses at now.
// Status alone is not enough: the schedule window can lapse without a status change.
func CanAcceptResponses(survey *models.Survey, now time.Time) bool {
	if survey == nil || survey.Status != models.StatusActive {
		return false
	}
	if survey.StartDate != nil && now.Before(*survey.StartDate) {
		return false
	}
	if survey.EndDate != nil && now.After(*survey.EndDate) {
		return false
	}
	return true
}

// CheckTransition validates moving survey to target. questionCount is the
// survey's current number of questions.
func CheckTransition(survey *models.Survey, target models.SurveyStatus, questionCount int64) error {
	if !target.Valid() {
		return invalid("unknown survey status %q", target)
	}

	from := survey.Status
	switch target {
	case models.StatusClosed:
		// administrative override from any status, CLOSED included
		return nil

	case models.StatusScheduled:
		if from != models.StatusDraft {
			return ruleViolation("cannot schedule a %s survey", from)
		}
		if survey.StartDate == nil {
			return ruleViolation("scheduling requires a start date")
		}
		return nil

	case models.StatusActive:
		if from != models.StatusDraft && from != models.StatusScheduled {
			return ruleViolation("cannot publish a %s survey", from)
		}
		if questionCount == 0 {
			return ruleViolation("cannot publish a survey without questions")
		}
		return nil
	}

	return ruleViolation("cannot move a %s survey to %s", from, target)
}

// applyTransition validates and applies the transition in memory, stamping UpdatedAt.
func applyTransition(survey *models.Survey, target models.SurveyStatus, questionCount int64, now time.Time) error {
	if err := CheckTransition(survey, target, questionCount); err != nil {
		return err
	}
	survey.Status = target
	survey.UpdatedAt = now
	return nil
}
