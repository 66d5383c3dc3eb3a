package services

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RankedResponse is a response with its upvote count at ranking time.
type RankedResponse struct {
	Response    models.Response
	UpvoteCount int64
}

// RankingService computes top responses straight from the upvote rows on every call.
type RankingService struct {
	db *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{db: db}
}

type rankRow struct {
	ID          uuid.UUID
	UpvoteCount int64
}

// TopResponses returns at most k responses of questionID ordered by upvote
// count descending. Ties go to the earlier submission, then the lower id.
func (s *RankingService) TopResponses(questionID uuid.UUID, k int) ([]RankedResponse, error) {
	if k < 0 {
		return nil, invalid("k must not be negative")
	}

	var ranked []RankedResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFound("question not found")
		}
		if k == 0 {
			return nil
		}

		var rows []rankRow
		if err := tx.Table("responses").
			Select("responses.id AS id, COUNT(upvotes.id) AS upvote_count").
			Joins("LEFT JOIN upvotes ON upvotes.response_id = responses.id").
			Where("responses.question_id = ?", questionID).
			Group("responses.id, responses.created_at").
			Order("upvote_count DESC, responses.created_at ASC, responses.id ASC").
			Limit(k).
			Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		var responses []models.Response
		if err := tx.Preload("User").Where("id IN ?", ids).Find(&responses).Error; err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.Response, len(responses))
		for _, r := range responses {
			byID[r.ID] = r
		}

		ranked = make([]RankedResponse, 0, len(rows))
		for _, r := range rows {
			resp, ok := byID[r.ID]
			if !ok {
				continue
			}
			ranked = append(ranked, RankedResponse{Response: resp, UpvoteCount: r.UpvoteCount})
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "failed to rank responses")
	}
	if ranked == nil {
		ranked = []RankedResponse{}
	}
	return ranked, nil
}
