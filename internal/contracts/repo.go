package contracts

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotProcessing reports that a contract is no longer in processing.
var ErrNotProcessing = errors.New("contract is not processing")

// Repository persists contract uploads and their analyses.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a contracts repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending upload.
func (r *Repository) Create(ctx context.Context, contract *models.Contract) (*models.Contract, error) {
	if !contract.UploadedAt.IsZero() {
		contract.UploadedAt = contract.UploadedAt.UTC()
	}
	if err := r.db.WithContext(ctx).Create(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

// CountSince counts the user's uploads at or after since.
func (r *Repository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("user_id = ? AND uploaded_at >= ?", userID, since.UTC()).
		Count(&count).Error
	return count, err
}

// FindByID loads a contract regardless of owner.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// FindByIDForUser loads a contract owned by userID.
func (r *Repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListForUser returns the user's uploads newest first, fetching one extra
// row so callers can build the next cursor.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Contract, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		query = query.Where("(uploaded_at < ?) OR (uploaded_at = ? AND id < ?)", cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
	}
	var rows []models.Contract
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus sets status and error message and returns the updated row.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContractStatus, errorMessage *string) (*models.Contract, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// ClaimForProcessing moves a pending or processing contract to processing.
// It reports false when the contract already reached a terminal status.
func (r *Repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND status IN ?", id, []enums.ContractStatus{enums.ContractStatusPending, enums.ContractStatusProcessing}).
		Updates(map[string]any{
			"status":     enums.ContractStatusProcessing,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveAnalysis completes a processing contract and stores its analysis in
// one transaction. It returns ErrNotProcessing when the contract already left
// processing; the first stored analysis is never overwritten.
func (r *Repository) SaveAnalysis(ctx context.Context, result *models.ContractAnalysis, analyzedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Contract{}).
			Where("id = ? AND status = ?", result.ContractID, enums.ContractStatusProcessing).
			Updates(map[string]any{
				"status":        enums.ContractStatusCompleted,
				"analyzed_at":   analyzedAt.UTC(),
				"error_message": nil,
				"updated_at":    analyzedAt.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotProcessing
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_id"}},
			DoNothing: true,
		}).Create(result).Error
	})
}

// FindAnalysis loads the analysis of contractID.
func (r *Repository) FindAnalysis(ctx context.Context, contractID uuid.UUID) (*models.ContractAnalysis, error) {
	var result models.ContractAnalysis
	if err := r.db.WithContext(ctx).First(&result, "contract_id = ?", contractID).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// FailStaleProcessing marks contracts stuck in processing since before
// cutoff as failed and returns how many rows changed.
func (r *Repository) FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("status = ? AND updated_at < ?", enums.ContractStatusProcessing, cutoff.UTC()).
		Updates(map[string]any{
			"status":        enums.ContractStatusFailed,
			"error_message": message,
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
