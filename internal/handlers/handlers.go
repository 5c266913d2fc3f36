// Package handlers provides HTTP handlers for the contract file API.
//
// This package contains the endpoints for uploading, merging, sealing,
// renaming, listing and downloading contract files, and the CRUD endpoints of
// the seal registry.
//
// Example usage:
//
//	h := handlers.NewAPIHandler(files, registry, validator, maxUploadSize, logger)
//	r := chi.NewRouter()
//	r.Post("/api/files/upload", h.UploadFiles)
//
// All handlers are designed to be used with the chi router.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go-contractseal/internal/assembly"
	"go-contractseal/internal/seals"
	"go-contractseal/internal/validation"

	"github.com/sirupsen/logrus"
)

type APIHandler struct {
	Files         *assembly.Service
	Seals         *seals.Registry
	Validator     *validation.Validator
	MaxUploadSize int64
	Log           *logrus.Logger
}

func NewAPIHandler(files *assembly.Service, registry *seals.Registry, v *validation.Validator, maxUploadSize int64, logger *logrus.Logger) *APIHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &APIHandler{
		Files:         files,
		Seals:         registry,
		Validator:     v,
		MaxUploadSize: maxUploadSize,
		Log:           logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errBadRequest marks request-shape failures detected in the handler itself.
var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e *badRequest) Error() string        { return e.msg }
func (e *badRequest) Is(target error) bool { return target == errBadRequest }

// decodeJSON validates the body against the named schema before decoding it into dst.
func (h *APIHandler) decodeJSON(r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return &badRequest{msg: "failed to read request body"}
	}
	if h.Validator != nil {
		if err := h.Validator.Validate(schema, body); err != nil {
			return &badRequest{msg: err.Error()}
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &badRequest{msg: "invalid JSON format: " + err.Error()}
	}
	return nil
}

// fileError writes the {"error": ...} body used by the files endpoints.
func (h *APIHandler) fileError(w http.ResponseWriter, op string, err error) {
	var pageErr *assembly.PageOutOfRangeError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, assembly.ErrMissingField),
		errors.Is(err, assembly.ErrNoFileSelected),
		errors.Is(err, assembly.ErrUnsupportedType),
		errors.Is(err, assembly.ErrNoUpload),
		errors.Is(err, assembly.ErrSealImageNotFound),
		errors.Is(err, assembly.ErrOutsideStorage),
		errors.As(err, &pageErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, assembly.ErrMainNotFound), errors.Is(err, assembly.ErrFileNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.Log.WithError(err).WithField("operation", op).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed: " + err.Error()})
	}
}

// sealError writes the {"success": false, "message": ...} body used by the seal endpoints.
func (h *APIHandler) sealError(w http.ResponseWriter, op string, err error) {
	body := map[string]any{"success": false, "message": err.Error()}
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, seals.ErrNameRequired),
		errors.Is(err, seals.ErrImageRequired),
		errors.Is(err, seals.ErrInvalidImage):
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, seals.ErrNotFound):
		writeJSON(w, http.StatusNotFound, body)
	default:
		h.Log.WithError(err).WithField("operation", op).Error("request failed")
		body["message"] = op + " failed: " + err.Error()
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
