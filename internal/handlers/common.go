package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// 5MB per image, 64MB per multipart request.
const (
	maxImageSize     = 5 << 20
	maxMultipartSize = 64 << 20
)

var validate = validator.New()

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondAppError maps a service error onto the transport. Internal
// failures are logged with detail and surfaced generically.
func respondAppError(w http.ResponseWriter, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		log.Error().Err(err).Msg("Request failed")
	}
	respondError(w, apperr.Message(err), apperr.Status(err))
}

// decodeAndValidate decodes a JSON body into v and runs struct validation
func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.E(apperr.Validation, "invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.Validation, "validation failed", err)
	}
	return nil
}

// readUploads pulls image files out of a parsed multipart form. Oversized
// batches and non-image parts are rejected before any upload happens.
func readUploads(files []*multipart.FileHeader) ([]services.ImageUpload, error) {
	if len(files) > 10 {
		return nil, apperr.E(apperr.Validation, "max 10 images allowed")
	}

	uploads := make([]services.ImageUpload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageSize {
			return nil, apperr.E(apperr.Validation, "image exceeds 5MB limit")
		}

		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "failed to read uploaded file", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "failed to read uploaded file", err)
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		if len(contentType) < 6 || contentType[:6] != "image/" {
			return nil, apperr.E(apperr.Validation, "only images allowed")
		}

		uploads = append(uploads, services.ImageUpload{Data: data, ContentType: contentType})
	}
	return uploads, nil
}
