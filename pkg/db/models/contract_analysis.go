package models

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContractAnalysis stores the normalized analysis for exactly one contract.
type ContractAnalysis struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID     uuid.UUID       `gorm:"column:contract_id;type:uuid;not null;uniqueIndex"`
	OverallRisk    enums.RiskLevel `gorm:"column:overall_risk;type:risk_level;not null"`
	Confidence     int             `gorm:"column:confidence;not null"`
	KeyInformation datatypes.JSON  `gorm:"column:key_information;type:jsonb;not null"`
	RiskFlags      datatypes.JSON  `gorm:"column:risk_flags;type:jsonb;not null"`
	Model          string          `gorm:"column:model;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (a *ContractAnalysis) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
