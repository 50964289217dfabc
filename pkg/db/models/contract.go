package models

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contract is an uploaded document and its analysis lifecycle.
type Contract struct {
	ID            uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	FileName      string               `gorm:"column:file_name;not null"`
	FileType      enums.FileType       `gorm:"column:file_type;type:contract_file_type;not null"`
	FileSizeBytes int64                `gorm:"column:file_size_bytes;not null"`
	StorageKey    string               `gorm:"column:storage_key;not null"`
	Status        enums.ContractStatus `gorm:"column:status;type:contract_status;not null;default:'pending'"`
	ErrorMessage  *string              `gorm:"column:error_message"`
	UploadedAt    time.Time            `gorm:"column:uploaded_at;not null"`
	AnalyzedAt    *time.Time           `gorm:"column:analyzed_at"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = enums.ContractStatusPending
	}
	return nil
}
