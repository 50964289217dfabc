package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/api/responses"
	"github.com/angelmondragon/clausewise-backend/api/validators"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
)

const (
	contractField      = "contract"
	batchContractField = "contracts"
	multipartMemory    = 8 << 20
	// multipartOverhead covers boundaries and headers around the file parts.
	multipartOverhead = 1 << 20
)

// ContractsUpload accepts one multipart file under the "contract" field.
// Subscription and quota denials are returned before the body is read.
// maxFileBytes is the largest size any plan allows; the gate enforces the
// caller's own limit.
func ContractsUpload(svc contracts.Service, maxFileBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Precheck(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		form, err := parseMultipart(w, r, maxFileBytes+multipartOverhead)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.RemoveAll()

		headers := form.File[contractField]
		if len(headers) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "contract file is required").WithDetails(map[string]string{"field": contractField}))
			return
		}

		file, err := headers[0].Open()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read contract file"))
			return
		}
		defer file.Close()

		dto, err := svc.Upload(r.Context(), userID, contracts.UploadInput{
			FileName: headers[0].Filename,
			Size:     headers[0].Size,
			Body:     file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// ContractsBatch accepts several files under the "contracts" field. Files
// are gated one at a time and the batch stops at the first denial.
func ContractsBatch(svc contracts.Service, maxFileBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Precheck(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := int64(contracts.MaxBatchFiles)*maxFileBytes + multipartOverhead
		form, err := parseMultipart(w, r, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.RemoveAll()

		headers := form.File[batchContractField]
		if len(headers) == 0 {
			headers = form.File[contractField]
		}

		inputs := make([]contracts.UploadInput, 0, len(headers))
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read contract file"))
				return
			}
			defer file.Close()
			inputs = append(inputs, contracts.UploadInput{
				FileName: header.Filename,
				Size:     header.Size,
				Body:     file,
			})
		}

		result, err := svc.UploadBatch(r.Context(), userID, inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ContractsList(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ContractGet(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedContract(logg, func(r *http.Request, userID, contractID uuid.UUID) (any, error) {
		return svc.Get(r.Context(), userID, contractID)
	})
}

func ContractStatus(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedContract(logg, func(r *http.Request, userID, contractID uuid.UUID) (any, error) {
		return svc.Status(r.Context(), userID, contractID)
	})
}

func ContractAnalysis(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedContract(logg, func(r *http.Request, userID, contractID uuid.UUID) (any, error) {
		return svc.Analysis(r.Context(), userID, contractID)
	})
}

func ContractDownload(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedContract(logg, func(r *http.Request, userID, contractID uuid.UUID) (any, error) {
		return svc.Download(r.Context(), userID, contractID)
	})
}

// ContractsQuota reports the caller's monthly usage.
func ContractsQuota(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		quota, err := svc.Quota(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quota)
	}
}

func ownedContract(logg *logger.Logger, load func(r *http.Request, userID, contractID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		contractID, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := load(r, userID, contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeFileSizeLimit, "request body too large").WithDetails(map[string]any{"maxBytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return r.MultipartForm, nil
}
