package handler

import (
	"net/http"

	"go.uber.org/zap"
)

func (h *Handler) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if _, err := h.params.Get(r.Context()); err != nil {
		h.logger.Error("Parameter load failed", zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusOK)
}
