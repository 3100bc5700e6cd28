package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/pathgen"
	"mediavault/internal/repository/memory"
	"mediavault/internal/service"
	"mediavault/internal/storage"
	"mediavault/internal/tokens"
)

const testAdminKey = "admin-key"

type testServer struct {
	handler http.Handler
	assets  *memory.AssetRepository
	disks   *storage.Disks
}

type nopEvents struct{}

func (nopEvents) AssetCreated(context.Context, *domain.AssetCreated) {}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	registry := collection.NewRegistry(pathgen.New(""))
	require.NoError(t, registry.Register("user:docs", collection.NewDefinition("docs")))

	public := storage.NewFsDisk(service.PublicDisk, afero.NewMemMapFs())
	private := storage.NewFsDisk(service.PrivateDisk, afero.NewMemMapFs())
	staging := storage.NewFsDisk(service.StagingDisk, afero.NewMemMapFs())
	disks := storage.NewDisks(public, private, staging)

	assets := memory.NewAssetRepository(nil)
	adder := service.NewAssetAdder(assets, registry, disks, nil, nopEvents{}, log)
	provider := tokens.NewStoreProvider(tokens.NewMemoryStore(), time.Hour, log)
	pending := service.NewPendingAssetManager(memory.NewPendingAssetRepository(time.Hour), staging, provider, log, 0)
	promoter := service.NewPendingPromoter(pending, adder, log)

	access := service.NewAssetAccessService(assets, disks, nil, log)
	router := NewRouter(log,
		NewPendingHandler(pending, promoter, log),
		NewAssetHandler(access, service.NewAssetService(assets, service.AdminKeyPolicy(testAdminKey), log), log),
		"/metrics",
	)
	return &testServer{handler: router, assets: assets, disks: disks}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, fileName, content string) StorePendingResponse {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("name", "Upload"))
	require.NoError(t, mw.WriteField("custom_properties", `{"source":"test"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/pending", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp StorePendingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, resp.Token, rec.Header().Get(pendingTokenHeader))
	return resp
}

func TestPendingUploadAndFetch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	stored := s.upload(t, "notes.txt", "hello")
	require.Equal(t, "Upload", stored.Name)
	require.Equal(t, int64(5), stored.Size)
	require.Equal(t, "test", stored.CustomProperties["source"])

	req := httptest.NewRequest(http.MethodGet, "/v1/pending/"+stored.ID, nil)
	req.Header.Set(pendingTokenHeader, stored.Token)
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/pending/"+stored.ID+"/content", nil)
	req.AddCookie(&http.Cookie{Name: pendingTokenCookie, Value: stored.Token})
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPendingRejectsWrongToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	stored := s.upload(t, "notes.txt", "hello")

	req := httptest.NewRequest(http.MethodGet, "/v1/pending/"+stored.ID, nil)
	req.Header.Set(pendingTokenHeader, stored.Token+"x")
	rec := s.do(req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "assets.token_invalid", resp.Key)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/v1/pending/"+stored.ID, nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/v1/pending/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPendingUploadValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/pending", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	require.Equal(t, http.StatusBadRequest, s.do(req).Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", ".hidden")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest(http.MethodPost, "/v1/pending", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "assets.file_name_not_allowed", resp.Key)
}

func TestPendingDelete(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	stored := s.upload(t, "notes.txt", "hello")

	req := httptest.NewRequest(http.MethodDelete, "/v1/pending/"+stored.ID, nil)
	req.Header.Set(pendingTokenHeader, stored.Token)
	require.Equal(t, http.StatusNoContent, s.do(req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/v1/pending/"+stored.ID, nil)
	req.Header.Set(pendingTokenHeader, stored.Token)
	require.Equal(t, http.StatusNotFound, s.do(req).Code)
}

func TestPromoteDownloadAndDelete(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	stored := s.upload(t, "notes.txt", "hello")

	req := httptest.NewRequest(http.MethodPost, "/v1/pending/"+stored.ID+"/promote",
		strings.NewReader(`{"entity_type":"user","entity_id":7,"collection":"docs"}`))
	req.Header.Set(pendingTokenHeader, stored.Token)
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var asset domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	require.Equal(t, int64(7), asset.EntityID)
	require.Equal(t, "notes.txt", asset.FileName)

	assetURL := "/v1/assets/" + strconv.FormatInt(asset.ID, 10)
	rec = s.do(httptest.NewRequest(http.MethodGet, assetURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")

	rec = s.do(httptest.NewRequest(http.MethodGet, assetURL+"/variants/thumb", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, assetURL, nil)
	req.Header.Set(adminKeyHeader, testAdminKey)
	require.Equal(t, http.StatusNoContent, s.do(req).Code)
	require.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, assetURL, nil)).Code)
}

func TestPromoteValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	stored := s.upload(t, "notes.txt", "hello")

	req := httptest.NewRequest(http.MethodPost, "/v1/pending/"+stored.ID+"/promote", strings.NewReader(`{`))
	req.Header.Set(pendingTokenHeader, stored.Token)
	require.Equal(t, http.StatusBadRequest, s.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/pending/"+stored.ID+"/promote", strings.NewReader(`{"entity_type":"user"}`))
	req.Header.Set(pendingTokenHeader, stored.Token)
	require.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestPrivateAssetIsForbidden(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.assets.Put(domain.Asset{ID: 3, Disk: service.PrivateDisk, Path: "p/a.txt", FileName: "a.txt"})

	require.Equal(t, http.StatusForbidden, s.do(httptest.NewRequest(http.MethodGet, "/v1/assets/3", nil)).Code)
	require.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodGet, "/v1/assets/abc", nil)).Code)
}

func TestAssetDeleteRequiresAdminKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	public, err := s.disks.Get(service.PublicDisk)
	require.NoError(t, err)
	_, err = public.Put(context.Background(), "a/a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	s.assets.Put(domain.Asset{ID: 5, Disk: service.PublicDisk, Path: "a/a.txt", FileName: "a.txt", MIMEType: "text/plain", Size: 1})

	// Публичный ассет читается, но без ключа не удаляется
	require.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/v1/assets/5", nil)).Code)
	require.Equal(t, http.StatusForbidden, s.do(httptest.NewRequest(http.MethodDelete, "/v1/assets/5", nil)).Code)

	req := httptest.NewRequest(http.MethodDelete, "/v1/assets/5", nil)
	req.Header.Set(adminKeyHeader, "wrong")
	require.Equal(t, http.StatusForbidden, s.do(req).Code)

	stored, ok := s.assets.Get(5)
	require.True(t, ok)
	require.False(t, stored.IsDeleted())

	req = httptest.NewRequest(http.MethodDelete, "/v1/assets/404", nil)
	req.Header.Set(adminKeyHeader, testAdminKey)
	require.Equal(t, http.StatusNotFound, s.do(req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
