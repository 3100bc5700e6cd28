package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/service"
	"mediavault/internal/tokens"
)

const (
	pendingTokenHeader = "X-Pending-Token"
	pendingTokenCookie = "pending_token"
	maxUploadMemory    = 32 << 20
)

type PendingAssetResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	FileName         string         `json:"file_name"`
	MIMEType         string         `json:"mime_type"`
	Size             int64          `json:"size"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

type StorePendingResponse struct {
	PendingAssetResponse
	Token string `json:"token"`
}

type PromoteRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	Collection string `json:"collection"`
}

type PendingHandler struct {
	pending  *service.PendingAssetManager
	promoter *service.PendingPromoter
	log      *logger.Logger
}

func NewPendingHandler(pending *service.PendingAssetManager, promoter *service.PendingPromoter, baseLog *logger.Logger) *PendingHandler {
	return &PendingHandler{
		pending:  pending,
		promoter: promoter,
		log:      baseLog.With("component", "PendingHandler"),
	}
}

// WithToken кладет токен из заголовка или cookie в контекст запроса
func WithToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(pendingTokenHeader)
		if token == "" {
			if c, err := r.Cookie(pendingTokenCookie); err == nil {
				token = c.Value
			}
		}
		if token != "" {
			r = r.WithContext(tokens.WithRequestToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// Store принимает multipart-поле "file" и необязательные "name", "ttl" (секунды), "custom_properties" (JSON)
func (h *PendingHandler) Store(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Failed to parse form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No file uploaded"})
		return
	}
	defer file.Close()

	upload := service.PendingUpload{
		Name:     r.FormValue("name"),
		FileName: header.Filename,
		Content:  file,
	}

	if ttl := r.FormValue("ttl"); ttl != "" {
		seconds, err := strconv.ParseInt(ttl, 10, 64)
		if err != nil || seconds <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid ttl"})
			return
		}
		upload.TTL = time.Duration(seconds) * time.Second
	}

	if raw := r.FormValue("custom_properties"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &upload.CustomProperties); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid custom_properties"})
			return
		}
	}

	p, token, err := h.pending.Store(r.Context(), upload)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	w.Header().Set(pendingTokenHeader, token)
	writeJSON(w, http.StatusCreated, StorePendingResponse{
		PendingAssetResponse: toPendingResponse(p),
		Token:                token,
	})
}

func (h *PendingHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.pending.FetchAuthorized(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingResponse(p))
}

func (h *PendingHandler) Content(w http.ResponseWriter, r *http.Request) {
	p, err := h.pending.FetchAuthorized(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	content, err := h.pending.Open(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", p.MIMEType)
	w.Header().Set("Content-Length", strconv.FormatInt(p.Size, 10))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, content); err != nil {
		h.log.Warn("Failed to stream pending asset", "pending_id", p.ID, "error", err)
	}
}

func (h *PendingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.pending.FetchAuthorized(r.Context(), id, ""); err != nil {
		writeError(w, h.log, err)
		return
	}

	deleted, err := h.pending.DeleteByID(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !deleted {
		writeError(w, h.log, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PendingHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.EntityType == "" || req.Collection == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "entity_type and collection are required"})
		return
	}

	owner := domain.OwnerRef{Type: req.EntityType, ID: req.EntityID}
	asset, err := h.promoter.Promote(r.Context(), owner, chi.URLParam(r, "id"), "", req.Collection)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func toPendingResponse(p *domain.PendingAsset) PendingAssetResponse {
	return PendingAssetResponse{
		ID:               p.ID,
		Name:             p.Name,
		FileName:         p.FileName,
		MIMEType:         p.MIMEType,
		Size:             p.Size,
		CustomProperties: p.CustomProperties,
		ExpiresAt:        p.ExpiresAt(),
	}
}
