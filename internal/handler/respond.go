package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pyladiescon/confops/internal/domain"
)

// maxBodyBytes caps request bodies accepted by the interaction and operator endpoints.
const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a JSON error response. domain.AppError carries its own status;
// integration failures map to 502.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, map[string]string{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	if domain.IsIntegrationError(err) {
		RespondJSON(w, http.StatusBadGateway, map[string]string{
			"code":    "UPSTREAM_ERROR",
			"message": "upstream service failed",
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]string{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

// DecodeJSON reads and decodes a JSON request body of at most 1 MiB into dst.
func DecodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst)
}
