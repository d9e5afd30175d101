package httptransport

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError centralizes domain error translation to HTTP responses. Keeping
// it here ensures consistent JSON error envelopes.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	writeJSON(w, derrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

// decode reads a JSON request body into dst.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return derrors.New(derrors.CodeValidation, "invalid request body")
	}
	return nil
}

func documentBody(id domain.DocumentID, uri string, hash [32]byte, addedAt time.Time) map[string]any {
	return map[string]any{
		"id":       id,
		"uri":      uri,
		"hash":     hex.EncodeToString(hash[:]),
		"added_at": addedAt,
	}
}
