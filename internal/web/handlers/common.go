package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
)

const (
	errInvalidRequestBody = "invalid request body"
	errRequestTooLarge    = "request body too large"
)

// maxRequestBody caps operator request bodies. An identify request carries
// one registration number.
const maxRequestBody = 4 << 10

// sanitizeForLog drops control characters from operator input before logging,
// so a typed or scanned identifier cannot forge log lines.
func sanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// decodeJSON reads a size-limited JSON body into dst. On failure it writes
// the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, errRequestTooLarge)
			return false
		}
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data) //nolint:errcheck,errchkjson // client gone
	}
}

// respondError writes {"error": message}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
