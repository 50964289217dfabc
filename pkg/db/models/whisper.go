package models

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Whisper is a short community post shown once approved by moderation.
type Whisper struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Text       string             `gorm:"column:text;not null"`
	Theme      enums.WhisperTheme `gorm:"column:theme;not null"`
	AuthorName string             `gorm:"column:author_name;not null"`
	UserID     *uuid.UUID         `gorm:"column:user_id;type:uuid"`
	Likes      int                `gorm:"column:likes;not null;default:0"`
	ViewCount  int                `gorm:"column:view_count;not null;default:0"`
	IsApproved bool               `gorm:"column:is_approved;not null;default:false"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Whisper) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// WhisperLike records that a user liked a whisper; the pair is unique.
type WhisperLike struct {
	WhisperID uuid.UUID `gorm:"column:whisper_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// WhisperReport is a moderation request raised against a whisper.
type WhisperReport struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WhisperID  uuid.UUID          `gorm:"column:whisper_id;type:uuid;not null;index"`
	ReporterID uuid.UUID          `gorm:"column:reporter_id;type:uuid;not null"`
	Reason     enums.ReportReason `gorm:"column:reason;not null"`
	Details    *string            `gorm:"column:details"`
	Status     enums.ReportStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *WhisperReport) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = enums.ReportStatusPending
	}
	return nil
}
