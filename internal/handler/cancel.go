package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/macd-cancel/internal/models"
)

// CancelHandler serves an invocation over HTTP. The request body is the
// invocation body and the query string carries test_mode.
func (h *Handler) CancelHandler(rw http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	event := models.Event{Body: string(body)}
	if query := r.URL.Query(); len(query) > 0 {
		event.QueryStringParameters = make(map[string]string, len(query))
		for key := range query {
			event.QueryStringParameters[key] = query.Get(key)
		}
	}

	resp := h.Handle(r.Context(), event)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(rw, resp.Body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
