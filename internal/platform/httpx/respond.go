// Package httpx implements the JSON response envelope shared by every API
// endpoint: {success, message, data, timestamp, metadata}.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Envelope is the uniform API response body.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata carries pagination details for list responses.
type Metadata struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// JSON writes an arbitrary envelope with the given status code.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a success envelope carrying data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// OKMessage writes a success envelope with a message and optional data.
func OKMessage(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Paginated writes a success envelope with list data and pagination metadata.
func Paginated(w http.ResponseWriter, data any, p shared.Pagination) {
	meta := Metadata{Page: p.Page, PerPage: p.PerPage, Total: p.Total, TotalPages: p.TotalPages}
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Metadata: &meta})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
