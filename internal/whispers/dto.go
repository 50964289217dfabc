package whispers

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/google/uuid"
)

const (
	MaxTextLength       = 500
	MaxAuthorNameLength = 50
	MaxDetailsLength    = 500
	anonymousAuthor     = "Anonymous"
)

type WhisperDTO struct {
	ID         uuid.UUID          `json:"id"`
	Text       string             `json:"text"`
	Theme      enums.WhisperTheme `json:"theme"`
	AuthorName string             `json:"authorName"`
	AuthorID   *uuid.UUID         `json:"authorId,omitempty"`
	Likes      int                `json:"likes"`
	ViewCount  int                `json:"viewCount"`
	IsApproved bool               `json:"isApproved"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type WhisperList = pagination.Page[WhisperDTO]

// ListQuery carries the public listing filters.
type ListQuery struct {
	Theme  string
	Limit  int
	Cursor string
}

type CreateWhisperRequest struct {
	Text       string `json:"text" validate:"required,min=1,max=500"`
	Theme      string `json:"theme" validate:"required"`
	AuthorName string `json:"authorName" validate:"omitempty,max=50"`
}

type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

type ReportRequest struct {
	Reason  string `json:"reason" validate:"required,oneof=inappropriate spam harassment misinformation other"`
	Details string `json:"details" validate:"omitempty,max=500"`
}

type ReportDTO struct {
	ID         uuid.UUID          `json:"id"`
	WhisperID  uuid.UUID          `json:"whisperId"`
	ReporterID uuid.UUID          `json:"reporterId"`
	Reason     enums.ReportReason `json:"reason"`
	Details    *string            `json:"details,omitempty"`
	Status     enums.ReportStatus `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func whisperFromModel(w *models.Whisper) WhisperDTO {
	return WhisperDTO{
		ID:         w.ID,
		Text:       w.Text,
		Theme:      w.Theme,
		AuthorName: w.AuthorName,
		AuthorID:   w.UserID,
		Likes:      w.Likes,
		ViewCount:  w.ViewCount,
		IsApproved: w.IsApproved,
		CreatedAt:  w.CreatedAt,
	}
}

func reportFromModel(r *models.WhisperReport) ReportDTO {
	return ReportDTO{
		ID:         r.ID,
		WhisperID:  r.WhisperID,
		ReporterID: r.ReporterID,
		Reason:     r.Reason,
		Details:    r.Details,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}
