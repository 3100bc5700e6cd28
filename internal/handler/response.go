package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/service"
)

// ErrorResponse - тело ответа с ошибкой. Key - ключ перевода, Params - значения для подстановки.
type ErrorResponse struct {
	Error  string         `json:"error"`
	Key    string         `json:"key,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError переводит доменные ошибки в HTTP-ответ.
// Внутренние ошибки логируются и отдаются клиенту без подробностей.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var (
		assetNotFound *domain.AssetNotFoundError
		tokenInvalid  *domain.TokenInvalidError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.As(err, &assetNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	case errors.Is(err, service.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Access denied"})
		return
	case errors.As(err, &tokenInvalid):
		key, params := tokenInvalid.Translation()
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Invalid token", Key: key, Params: params})
		return
	}

	if p, ok := domain.AsPresentable(err); ok {
		key, params := p.Translation()
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: p.Error(), Key: key, Params: params})
		return
	}

	log.Error("Request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}
