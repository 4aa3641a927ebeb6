package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"npitrack/internal/apperr"
	"npitrack/internal/auth"
	"npitrack/internal/models"
	"npitrack/internal/validation"
)

const maxBodySize = 1 << 20

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	JSONStatus(w, http.StatusOK, data)
}

// JSONStatus writes data in the API envelope with the given status code.
func JSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

// JSONList writes a list response with its total count.
func JSONList(w http.ResponseWriter, data interface{}, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{
		Data: data,
		Meta: &models.Meta{Total: total},
	})
}

// Err writes a JSON error response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Error maps err onto a status code and writes it. Validation failures carry
// their field errors.
func Error(w http.ResponseWriter, err error) {
	var ve *validation.ValidationErrors
	switch {
	case errors.As(err, &ve):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "validation failed", "fields": ve.Errors})
	case apperr.IsNotFound(err):
		Err(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrInvalidToken):
		Err(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, auth.ErrEditsDisabled):
		Err(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, auth.ErrTooManyAttempts):
		Err(w, err.Error(), http.StatusTooManyRequests)
	default:
		var ext *apperr.ExternalSourceError
		if errors.As(err, &ext) {
			Err(w, err.Error(), http.StatusBadGateway)
			return
		}
		Err(w, err.Error(), http.StatusInternalServerError)
	}
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}
