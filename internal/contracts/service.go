package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/entitlements"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/angelmondragon/clausewise-backend/pkg/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// sniffBytes matches the mimetype default read limit.
	sniffBytes = 3072
	// MaxBatchFiles bounds one batch upload request.
	MaxBatchFiles   = 10
	maxFileNameLen  = 255
	defaultPresign  = 15 * time.Minute
	queueFailureMsg = "analysis could not be queued"
)

type contractRepository interface {
	Create(ctx context.Context, contract *models.Contract) (*models.Contract, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Contract, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContractStatus, errorMessage *string) (*models.Contract, error)
	FindAnalysis(ctx context.Context, contractID uuid.UUID) (*models.ContractAnalysis, error)
}

type gate interface {
	CheckUploadAllowed(ctx context.Context, userID uuid.UUID, fileSizeBytes int64) error
	CheckFeatureAllowed(ctx context.Context, userID uuid.UUID, feature string) error
	GetQuota(ctx context.Context, userID uuid.UUID) (entitlements.Quota, error)
}

// Service exposes the contract upload and retrieval flows.
type Service interface {
	Precheck(ctx context.Context, userID uuid.UUID) error
	Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*ContractDTO, error)
	UploadBatch(ctx context.Context, userID uuid.UUID, inputs []UploadInput) (*BatchResult, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ContractList, error)
	Get(ctx context.Context, userID, contractID uuid.UUID) (*ContractDTO, error)
	Status(ctx context.Context, userID, contractID uuid.UUID) (*StatusDTO, error)
	Analysis(ctx context.Context, userID, contractID uuid.UUID) (*AnalysisDTO, error)
	Download(ctx context.Context, userID, contractID uuid.UUID) (*DownloadDTO, error)
	Quota(ctx context.Context, userID uuid.UUID) (entitlements.Quota, error)
}

// UploadInput is one file received from the client.
type UploadInput struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// ServiceParams wires the contract service.
type ServiceParams struct {
	Repo       contractRepository
	Gate       gate
	Store      storage.ObjectStore
	Queue      queue.Publisher
	Logger     *logger.Logger
	PresignTTL time.Duration
	Now        func() time.Time
	// Locks serializes uploads per user when set.
	Locks      LockStore
	LockTTL    time.Duration
	LockWait   time.Duration
}

type service struct {
	repo       contractRepository
	gate       gate
	store      storage.ObjectStore
	queue      queue.Publisher
	logg       *logger.Logger
	presignTTL time.Duration
	now        func() time.Time
	lock       *uploadLock
}

// NewService validates params and builds the contract service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("entitlement gate required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("analysis queue required")
	}
	ttl := params.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresign
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		gate:       params.Gate,
		store:      params.Store,
		queue:      params.Queue,
		logg:       params.Logger,
		presignTTL: ttl,
		now:        now,
		lock:       newUploadLock(params.Locks, params.LockTTL, params.LockWait),
	}, nil
}

// Precheck applies the subscription and quota checks that do not depend on
// the file, so callers can deny before reading a request body.
func (s *service) Precheck(ctx context.Context, userID uuid.UUID) error {
	return s.gate.CheckUploadAllowed(ctx, userID, 0)
}

func (s *service) Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*ContractDTO, error) {
	fileName, err := cleanFileName(input.FileName)
	if err != nil {
		return nil, err
	}
	if input.Body == nil || input.Size <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract file is empty")
	}

	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.gate.CheckUploadAllowed(ctx, userID, input.Size); err != nil {
		return nil, err
	}

	fileType, body, err := sniff(input.Body, fileName)
	if err != nil {
		return nil, err
	}

	contractID := uuid.New()
	key := storage.ContractKey(userID, contractID, fileName)
	if err := s.store.Put(ctx, key, body, input.Size, fileType.ContentType()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store contract file")
	}

	contract, err := s.repo.Create(ctx, &models.Contract{
		ID:            contractID,
		UserID:        userID,
		FileName:      fileName,
		FileType:      fileType,
		FileSizeBytes: input.Size,
		StorageKey:    key,
		Status:        enums.ContractStatusPending,
		UploadedAt:    s.now().UTC(),
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.warn(ctx, "contracts.orphan_blob", delErr, contractID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contract")
	}

	if err := s.queue.Enqueue(ctx, queue.NewJob(contract.ID, userID, s.now())); err != nil {
		msg := queueFailureMsg
		if _, updErr := s.repo.UpdateStatus(ctx, contract.ID, enums.ContractStatusFailed, &msg); updErr != nil {
			s.warn(ctx, "contracts.mark_failed", updErr, contract.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue analysis")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithContractID(ctx, contract.ID.String()), map[string]any{
			"file_type": string(fileType),
			"size":      input.Size,
		})
		s.logg.Info(logCtx, "contracts.uploaded")
	}

	dto := contractFromModel(contract)
	return &dto, nil
}

func (s *service) UploadBatch(ctx context.Context, userID uuid.UUID, inputs []UploadInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one contract file is required")
	}
	if len(inputs) > MaxBatchFiles {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d files per batch", MaxBatchFiles))
	}
	if err := s.gate.CheckFeatureAllowed(ctx, userID, plans.FeatureBatchAnalysis); err != nil {
		return nil, err
	}

	result := &BatchResult{Uploaded: make([]ContractDTO, 0, len(inputs))}
	for _, input := range inputs {
		dto, err := s.Upload(ctx, userID, input)
		if err == nil {
			result.Uploaded = append(result.Uploaded, *dto)
			continue
		}
		typed := pkgerrors.As(err)
		if typed == nil || pkgerrors.MetadataFor(typed.Code()).HTTPStatus >= 500 {
			return nil, err
		}
		if len(result.Uploaded) == 0 {
			return nil, err
		}
		result.Rejected = &BatchRejection{
			FileName: input.FileName,
			Code:     string(typed.Code()),
			Message:  typed.Message(),
		}
		break
	}
	return result, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ContractList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForUser(ctx, userID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list contracts")
	}
	dtos := make([]ContractDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, contractFromModel(&rows[i]))
	}
	page := pagination.Build(dtos, params.Limit, func(c ContractDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.UploadedAt, ID: c.ID}
	})
	return &page, nil
}

func (s *service) Get(ctx context.Context, userID, contractID uuid.UUID) (*ContractDTO, error) {
	contract, err := s.owned(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	dto := contractFromModel(contract)
	return &dto, nil
}

func (s *service) Status(ctx context.Context, userID, contractID uuid.UUID) (*StatusDTO, error) {
	contract, err := s.owned(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	dto := statusFromModel(contract)
	return &dto, nil
}

func (s *service) Analysis(ctx context.Context, userID, contractID uuid.UUID) (*AnalysisDTO, error) {
	contract, err := s.owned(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != enums.ContractStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "analysis not available").
			WithDetails(map[string]any{"status": contract.Status})
	}
	record, err := s.repo.FindAnalysis(ctx, contract.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "analysis not available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load analysis")
	}
	dto, err := analysisFromModel(contract, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode analysis")
	}
	return dto, nil
}

func (s *service) Download(ctx context.Context, userID, contractID uuid.UUID) (*DownloadDTO, error) {
	contract, err := s.owned(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	url, err := s.store.PresignGet(ctx, contract.StorageKey, s.presignTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign download")
	}
	return &DownloadDTO{
		URL:       url,
		FileName:  contract.FileName,
		ExpiresAt: s.now().UTC().Add(s.presignTTL),
	}, nil
}

func (s *service) Quota(ctx context.Context, userID uuid.UUID) (entitlements.Quota, error) {
	return s.gate.GetQuota(ctx, userID)
}

func (s *service) owned(ctx context.Context, userID, contractID uuid.UUID) (*models.Contract, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}
	contract, err := s.repo.FindByIDForUser(ctx, contractID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contract")
	}
	return contract, nil
}

func (s *service) warn(ctx context.Context, msg string, err error, contractID uuid.UUID) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(s.logg.WithContractID(ctx, contractID.String()), "error", err.Error()), msg)
}

// sniff detects the document type from its leading bytes and returns a
// reader that replays them ahead of the rest of the body. A generic zip named
// .docx is accepted because Word archives may list word/ entries past the
// sniffed prefix.
func sniff(body io.Reader, fileName string) (enums.FileType, io.Reader, error) {
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read contract file")
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	for _, candidate := range []enums.FileType{enums.FileTypePDF, enums.FileTypeDOCX} {
		if detected.Is(candidate.ContentType()) {
			return candidate, io.MultiReader(bytes.NewReader(head), body), nil
		}
	}
	if detected.Is("application/zip") && strings.EqualFold(path.Ext(fileName), ".docx") {
		return enums.FileTypeDOCX, io.MultiReader(bytes.NewReader(head), body), nil
	}
	return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "only PDF and DOCX contracts are supported").
		WithDetails(map[string]any{"detectedType": detected.String()})
}

func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if len(name) > maxFileNameLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file name exceeds %d characters", maxFileNameLen))
	}
	return name, nil
}
