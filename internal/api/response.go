package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"onair/internal/netx"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// requestError is a failure the client caused; its message is safe to show.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, message: msg} }
func notFound(msg string) error   { return &requestError{status: http.StatusNotFound, message: msg} }

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: code < 400, Data: data})
}

// writeError maps err onto a status code. Upstream feed failures become 502
// so the UI can tell a broken station feed from a broken request.
func writeError(log zerolog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	msg := "something went wrong"

	var (
		reqErr   *requestError
		fetchErr *netx.FetchError
	)
	switch {
	case errors.As(err, &reqErr):
		code, msg = reqErr.status, reqErr.message
	case errors.As(err, &fetchErr):
		code, msg = http.StatusBadGateway, "station feed unavailable"
	case errors.Is(err, netx.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	}

	ev := log.Warn()
	if code >= 500 {
		ev = log.Error()
	}
	ev.Err(err).Str("request_id", middleware.GetReqID(r.Context())).Int("status", code).
		Str("path", r.URL.Path).Msg("request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Message: msg})
}
