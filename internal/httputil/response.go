package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Response is the envelope every entity endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Envelope writes {success, data?, message?}.
func Envelope(w http.ResponseWriter, status int, data interface{}, message string) {
	WriteJSON(w, status, Response{
		Success: status < http.StatusBadRequest,
		Data:    data,
		Message: message,
	})
}

// Bare writes data as-is. The consumer app reads ad configs, health and
// status without an envelope.
func Bare(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, data)
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Success: false, Message: message})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ReadJSON decodes the request body into dst. An empty body leaves dst
// untouched.
func ReadJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
