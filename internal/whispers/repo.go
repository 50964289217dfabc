package whispers

import (
	"context"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists whispers, likes and reports.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a whispers repository to conn.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// ListFilter narrows the approved listing.
type ListFilter struct {
	Theme  *enums.WhisperTheme
	Limit  int
	Cursor *pagination.Cursor
}

// ListApproved returns approved whispers newest first with one extra row for
// the next cursor.
func (r *Repository) ListApproved(ctx context.Context, filter ListFilter) ([]models.Whisper, error) {
	query := r.db.WithContext(ctx).
		Where("is_approved = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit))
	if filter.Theme != nil {
		query = query.Where("theme = ?", *filter.Theme)
	}
	if c := filter.Cursor; c != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt.UTC(), c.CreatedAt.UTC(), c.ID)
	}
	var rows []models.Whisper
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RandomApproved picks one approved whisper.
func (r *Repository) RandomApproved(ctx context.Context) (*models.Whisper, error) {
	var whisper models.Whisper
	err := r.db.WithContext(ctx).
		Where("is_approved = ?", true).
		Order("RANDOM()").
		Take(&whisper).Error
	if err != nil {
		return nil, err
	}
	return &whisper, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Whisper, error) {
	var whisper models.Whisper
	if err := r.db.WithContext(ctx).First(&whisper, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &whisper, nil
}

func (r *Repository) Create(ctx context.Context, whisper *models.Whisper) (*models.Whisper, error) {
	if err := r.db.WithContext(ctx).Create(whisper).Error; err != nil {
		return nil, err
	}
	return whisper, nil
}

// IncrementViews bumps the view counter in place.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Whisper{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ToggleLike flips userID's like on whisperID and returns the new state and
// like count. The counter never drops below zero.
func (r *Repository) ToggleLike(ctx context.Context, whisperID, userID uuid.UUID) (bool, int, error) {
	var (
		liked  bool
		counts []int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := tx.Where("whisper_id = ? AND user_id = ?", whisperID, userID).Delete(&models.WhisperLike{})
		if removed.Error != nil {
			return removed.Error
		}

		delta := gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")
		if removed.RowsAffected == 0 {
			liked = true
			inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.WhisperLike{WhisperID: whisperID, UserID: userID})
			if inserted.Error != nil {
				return inserted.Error
			}
			delta = gorm.Expr("likes")
			if inserted.RowsAffected == 1 {
				delta = gorm.Expr("likes + 1")
			}
		}

		res := tx.Model(&models.Whisper{}).Where("id = ?", whisperID).UpdateColumn("likes", delta)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Whisper{}).Where("id = ?", whisperID).Pluck("likes", &counts).Error
	})
	if err != nil {
		return false, 0, err
	}
	if len(counts) == 0 {
		return false, 0, gorm.ErrRecordNotFound
	}
	return liked, counts[0], nil
}

func (r *Repository) CreateReport(ctx context.Context, report *models.WhisperReport) (*models.WhisperReport, error) {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteClosedReportsBefore removes dismissed or resolved reports last
// touched before cutoff.
func (r *Repository) DeleteClosedReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", closedReportStatuses, cutoff.UTC()).
		Delete(&models.WhisperReport{})
	return res.RowsAffected, res.Error
}

var closedReportStatuses = []enums.ReportStatus{
	enums.ReportStatusDismissed,
	enums.ReportStatusResolvedRemoved,
	enums.ReportStatusResolvedKept,
}
