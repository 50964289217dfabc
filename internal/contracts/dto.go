package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/analysis"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/google/uuid"
)

// ContractDTO is the client view of an upload.
type ContractDTO struct {
	ID            uuid.UUID            `json:"id"`
	FileName      string               `json:"fileName"`
	FileType      enums.FileType       `json:"fileType"`
	FileSizeBytes int64                `json:"fileSize"`
	Status        enums.ContractStatus `json:"status"`
	ErrorMessage  *string              `json:"errorMessage,omitempty"`
	UploadedAt    time.Time            `json:"uploadedAt"`
	AnalyzedAt    *time.Time           `json:"analyzedAt,omitempty"`
}

// StatusDTO reports analysis progress.
type StatusDTO struct {
	ID           uuid.UUID            `json:"id"`
	Status       enums.ContractStatus `json:"status"`
	Progress     int                  `json:"progress"`
	ErrorMessage *string              `json:"errorMessage,omitempty"`
	UploadedAt   time.Time            `json:"uploadedAt"`
	AnalyzedAt   *time.Time           `json:"analyzedAt,omitempty"`
}

// AnalysisDTO is a completed analysis.
type AnalysisDTO struct {
	ContractID     uuid.UUID               `json:"contractId"`
	FileName       string                  `json:"fileName"`
	OverallRisk    enums.RiskLevel         `json:"overallRisk"`
	Confidence     int                     `json:"confidence"`
	KeyInformation analysis.KeyInformation `json:"keyInformation"`
	RiskFlags      []analysis.RiskFlag     `json:"riskFlags"`
	Model          string                  `json:"model"`
	AnalyzedAt     *time.Time              `json:"analyzedAt,omitempty"`
}

// DownloadDTO carries a time-limited link to the original document.
type DownloadDTO struct {
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BatchRejection names the file that stopped a batch and why.
type BatchRejection struct {
	FileName string `json:"fileName"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BatchResult lists what a batch upload accepted before stopping.
type BatchResult struct {
	Uploaded []ContractDTO   `json:"uploaded"`
	Rejected *BatchRejection `json:"rejected,omitempty"`
}

// ContractList is one page of uploads.
type ContractList = pagination.Page[ContractDTO]

func contractFromModel(c *models.Contract) ContractDTO {
	return ContractDTO{
		ID:            c.ID,
		FileName:      c.FileName,
		FileType:      c.FileType,
		FileSizeBytes: c.FileSizeBytes,
		Status:        c.Status,
		ErrorMessage:  c.ErrorMessage,
		UploadedAt:    c.UploadedAt,
		AnalyzedAt:    c.AnalyzedAt,
	}
}

func statusFromModel(c *models.Contract) StatusDTO {
	return StatusDTO{
		ID:           c.ID,
		Status:       c.Status,
		Progress:     c.Status.Progress(),
		ErrorMessage: c.ErrorMessage,
		UploadedAt:   c.UploadedAt,
		AnalyzedAt:   c.AnalyzedAt,
	}
}

func analysisFromModel(c *models.Contract, a *models.ContractAnalysis) (*AnalysisDTO, error) {
	dto := &AnalysisDTO{
		ContractID:  c.ID,
		FileName:    c.FileName,
		OverallRisk: a.OverallRisk,
		Confidence:  a.Confidence,
		Model:       a.Model,
		AnalyzedAt:  c.AnalyzedAt,
	}
	if err := json.Unmarshal(a.KeyInformation, &dto.KeyInformation); err != nil {
		return nil, fmt.Errorf("decode key information: %w", err)
	}
	if err := json.Unmarshal(a.RiskFlags, &dto.RiskFlags); err != nil {
		return nil, fmt.Errorf("decode risk flags: %w", err)
	}
	if dto.RiskFlags == nil {
		dto.RiskFlags = []analysis.RiskFlag{}
	}
	return dto, nil
}

func analysisToModel(contractID uuid.UUID, result analysis.Result, model string) (*models.ContractAnalysis, error) {
	keyInfo, err := json.Marshal(result.KeyInformation)
	if err != nil {
		return nil, fmt.Errorf("encode key information: %w", err)
	}
	flags, err := json.Marshal(result.RiskFlags)
	if err != nil {
		return nil, fmt.Errorf("encode risk flags: %w", err)
	}
	return &models.ContractAnalysis{
		ContractID:     contractID,
		OverallRisk:    result.OverallRisk,
		Confidence:     result.Confidence,
		KeyInformation: keyInfo,
		RiskFlags:      flags,
		Model:          model,
	}, nil
}
