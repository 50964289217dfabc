package whispers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the whispers feature surface used by the controllers.
type Service interface {
	List(ctx context.Context, query ListQuery) (*WhisperList, error)
	Random(ctx context.Context) (*WhisperDTO, error)
	Get(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*WhisperDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateWhisperRequest) (*WhisperDTO, error)
	ToggleLike(ctx context.Context, userID, id uuid.UUID) (*LikeResult, error)
	Report(ctx context.Context, userID, id uuid.UUID, req ReportRequest) (*ReportDTO, error)
}

type repository interface {
	ListApproved(ctx context.Context, filter ListFilter) ([]models.Whisper, error)
	RandomApproved(ctx context.Context) (*models.Whisper, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Whisper, error)
	Create(ctx context.Context, whisper *models.Whisper) (*models.Whisper, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	ToggleLike(ctx context.Context, whisperID, userID uuid.UUID) (bool, int, error)
	CreateReport(ctx context.Context, report *models.WhisperReport) (*models.WhisperReport, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ServiceParams struct {
	Repo   repository
	Users  userLookup
	Logger *logger.Logger
}

type service struct {
	repo  repository
	users userLookup
	logg  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("whispers repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	return &service{repo: params.Repo, users: params.Users, logg: params.Logger}, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*WhisperList, error) {
	filter := ListFilter{Limit: query.Limit}
	if query.Limit < 0 || query.Limit > pagination.MaxLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", pagination.MaxLimit))
	}
	if raw := strings.TrimSpace(query.Theme); raw != "" {
		theme, err := enums.ParseWhisperTheme(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid theme")
		}
		filter.Theme = &theme
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor

	rows, err := s.repo.ListApproved(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list whispers")
	}
	dtos := make([]WhisperDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, whisperFromModel(&rows[i]))
	}
	page := pagination.Build(dtos, query.Limit, func(w WhisperDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
	return &page, nil
}

func (s *service) Random(ctx context.Context) (*WhisperDTO, error) {
	whisper, err := s.repo.RandomApproved(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no approved whispers found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pick random whisper")
	}
	dto := whisperFromModel(whisper)
	return &dto, nil
}

// Get returns a whisper visible to viewer and counts the view.
func (s *service) Get(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*WhisperDTO, error) {
	whisper, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"whisper_id": id.String(), "error": err.Error()}), "whispers.view_count_failed")
		}
	} else {
		whisper.ViewCount++
	}
	dto := whisperFromModel(whisper)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateWhisperRequest) (*WhisperDTO, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || utf8.RuneCountInString(text) > MaxTextLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("text must be 1 to %d characters", MaxTextLength))
	}
	theme, err := enums.ParseWhisperTheme(strings.TrimSpace(req.Theme))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid theme")
	}
	author := strings.TrimSpace(req.AuthorName)
	if utf8.RuneCountInString(author) > MaxAuthorNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("author name cannot exceed %d characters", MaxAuthorNameLength))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUserNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load author")
	}
	if author == "" {
		author = strings.TrimSpace(user.DisplayName)
	}
	if author == "" {
		author = anonymousAuthor
	}

	owner := user.ID
	created, err := s.repo.Create(ctx, &models.Whisper{
		Text:       text,
		Theme:      theme,
		AuthorName: author,
		UserID:     &owner,
		IsApproved: false,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create whisper")
	}
	dto := whisperFromModel(created)
	return &dto, nil
}

func (s *service) ToggleLike(ctx context.Context, userID, id uuid.UUID) (*LikeResult, error) {
	if _, err := s.visible(ctx, &userID, id); err != nil {
		return nil, err
	}
	liked, likes, err := s.repo.ToggleLike(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "whisper not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "toggle like")
	}
	return &LikeResult{Liked: liked, Likes: likes}, nil
}

func (s *service) Report(ctx context.Context, userID, id uuid.UUID, req ReportRequest) (*ReportDTO, error) {
	reason, err := enums.ParseReportReason(strings.TrimSpace(req.Reason))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid report reason")
	}
	var details *string
	if d := strings.TrimSpace(req.Details); d != "" {
		if utf8.RuneCountInString(d) > MaxDetailsLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("details cannot exceed %d characters", MaxDetailsLength))
		}
		details = &d
	}
	if _, err := s.visible(ctx, &userID, id); err != nil {
		return nil, err
	}

	report, err := s.repo.CreateReport(ctx, &models.WhisperReport{
		WhisperID:  id,
		ReporterID: userID,
		Reason:     reason,
		Details:    details,
		Status:     enums.ReportStatusPending,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create report")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"whisper_id": id.String(), "reason": string(reason)}), "whispers.reported")
	}
	dto := reportFromModel(report)
	return &dto, nil
}

// visible loads id when it is approved or authored by viewer. Anything else
// is reported as not found.
func (s *service) visible(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*models.Whisper, error) {
	whisper, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "whisper not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load whisper")
	}
	if whisper.IsApproved {
		return whisper, nil
	}
	if viewer != nil && whisper.UserID != nil && *whisper.UserID == *viewer {
		return whisper, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "whisper not found")
}
