package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/internal/auth"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	"github.com/angelmondragon/clausewise-backend/internal/entitlements"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	"github.com/angelmondragon/clausewise-backend/internal/whispers"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

type stubAuthService struct {
	session    *auth.SessionResponse
	pair       *auth.TokenPair
	user       *users.UserDTO
	err        error
	gotAccess  string
	gotRefresh string
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.SessionResponse, error) {
	return s.session, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.SessionResponse, error) {
	return s.session, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	s.gotAccess, s.gotRefresh = accessToken, refreshToken
	return s.pair, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	s.gotAccess = accessToken
	return s.err
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return s.user, s.err
}

type uploadCall struct {
	userID uuid.UUID
	name   string
	size   int64
	body   string
}

type stubContractsService struct {
	uploads     []uploadCall
	batch       []uploadCall
	dto         *contracts.ContractDTO
	result      *contracts.BatchResult
	status      *contracts.StatusDTO
	quota       entitlements.Quota
	params      pagination.Params
	err         error
	precheckErr error
}

func (s *stubContractsService) Precheck(ctx context.Context, userID uuid.UUID) error {
	return s.precheckErr
}

func readUpload(userID uuid.UUID, input contracts.UploadInput) uploadCall {
	data, _ := io.ReadAll(input.Body)
	return uploadCall{userID: userID, name: input.FileName, size: input.Size, body: string(data)}
}

func (s *stubContractsService) Upload(ctx context.Context, userID uuid.UUID, input contracts.UploadInput) (*contracts.ContractDTO, error) {
	s.uploads = append(s.uploads, readUpload(userID, input))
	return s.dto, s.err
}

func (s *stubContractsService) UploadBatch(ctx context.Context, userID uuid.UUID, inputs []contracts.UploadInput) (*contracts.BatchResult, error) {
	for _, input := range inputs {
		s.batch = append(s.batch, readUpload(userID, input))
	}
	return s.result, s.err
}

func (s *stubContractsService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*contracts.ContractList, error) {
	s.params = params
	page := pagination.Page[contracts.ContractDTO]{Items: []contracts.ContractDTO{}}
	return &page, s.err
}

func (s *stubContractsService) Get(ctx context.Context, userID, contractID uuid.UUID) (*contracts.ContractDTO, error) {
	return s.dto, s.err
}

func (s *stubContractsService) Status(ctx context.Context, userID, contractID uuid.UUID) (*contracts.StatusDTO, error) {
	return s.status, s.err
}

func (s *stubContractsService) Analysis(ctx context.Context, userID, contractID uuid.UUID) (*contracts.AnalysisDTO, error) {
	return nil, s.err
}

func (s *stubContractsService) Download(ctx context.Context, userID, contractID uuid.UUID) (*contracts.DownloadDTO, error) {
	return nil, s.err
}

func (s *stubContractsService) Quota(ctx context.Context, userID uuid.UUID) (entitlements.Quota, error) {
	return s.quota, s.err
}

type stubWhispersService struct {
	query  whispers.ListQuery
	viewer *uuid.UUID
	dto    *whispers.WhisperDTO
	err    error
}

func (s *stubWhispersService) List(ctx context.Context, query whispers.ListQuery) (*whispers.WhisperList, error) {
	s.query = query
	page := whispers.WhisperList{Items: []whispers.WhisperDTO{}}
	return &page, s.err
}

func (s *stubWhispersService) Random(ctx context.Context) (*whispers.WhisperDTO, error) {
	return s.dto, s.err
}

func (s *stubWhispersService) Get(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*whispers.WhisperDTO, error) {
	s.viewer = viewer
	return s.dto, s.err
}

func (s *stubWhispersService) Create(ctx context.Context, userID uuid.UUID, req whispers.CreateWhisperRequest) (*whispers.WhisperDTO, error) {
	return s.dto, s.err
}

func (s *stubWhispersService) ToggleLike(ctx context.Context, userID, id uuid.UUID) (*whispers.LikeResult, error) {
	return &whispers.LikeResult{Liked: true, Likes: 1}, s.err
}

func (s *stubWhispersService) Report(ctx context.Context, userID, id uuid.UUID, req whispers.ReportRequest) (*whispers.ReportDTO, error) {
	return &whispers.ReportDTO{ID: uuid.New(), WhisperID: id, ReporterID: userID}, s.err
}
