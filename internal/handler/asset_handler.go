package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediavault/internal/logger"
	"mediavault/internal/service"
)

const adminKeyHeader = "X-Admin-Key"

type AssetHandler struct {
	access *service.AssetAccessService
	assets *service.AssetService
	log    *logger.Logger
}

func NewAssetHandler(access *service.AssetAccessService, assets *service.AssetService, baseLog *logger.Logger) *AssetHandler {
	return &AssetHandler{
		access: access,
		assets: assets,
		log:    baseLog.With("component", "AssetHandler"),
	}
}

func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

func (h *AssetHandler) DownloadVariant(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "name"))
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	ctx := service.WithAdminKey(r.Context(), r.Header.Get(adminKeyHeader))
	if err := h.assets.Delete(ctx, id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) serve(w http.ResponseWriter, r *http.Request, variant string) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	content, err := h.access.Open(r.Context(), id, variant)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer content.Reader.Close()

	// Подготавливаем имя файла для Content-Disposition
	encodedFileName := url.QueryEscape(content.FileName)
	asciiName := strings.ReplaceAll(content.FileName, `"`, `\"`)
	contentDisposition := fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`, asciiName, encodedFileName)

	w.Header().Set("Content-Type", content.MIMEType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition)
	if _, err := io.Copy(w, content.Reader); err != nil {
		h.log.Warn("Failed to stream asset", "asset_id", id, "variant", variant, "error", err)
	}
}

func parseAssetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid asset id"})
		return 0, false
	}
	return id, true
}
