package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndInfo(t *testing.T) {
	a := newTestApp(t)

	resp, out := a.call(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	out.decode(t, &h)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "up", h.Database)

	require.NoError(t, a.db.Close())
	resp, out = a.call(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	out.decode(t, &h)
	assert.Equal(t, "down", h.Database)
}

func TestMediaServesFilesAndBlocksTraversal(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(a.cfg.MediaDir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(a.cfg.MediaDir, "uploads", "note.txt"), []byte("hello"), 0o644))

	resp, out := a.call(t, http.MethodGet, "/media/uploads/note.txt", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(out.raw))

	for _, p := range []string{
		"/media/../go.mod",
		"/media/uploads/..%2f..%2fetc/passwd",
		"/media/%2e%2e/secret",
	} {
		resp, _ := a.call(t, http.MethodGet, p, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

// A tiny but valid PNG signature and IHDR chunk.
var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func upload(t *testing.T, a *testApp, token, name string, content []byte) (*http.Response, apiResponse) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func TestUploadThenServe(t *testing.T) {
	a := newTestApp(t)
	admin := a.login(t, "admin@storefront.test")
	customer := a.login(t, "alice@storefront.test")

	resp, _ := upload(t, a, customer, "pic.png", pngHeader)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, out := upload(t, a, admin, "notes.png", []byte("just some text"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(out.raw))

	resp, out = upload(t, a, admin, "pic.png", pngHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(out.raw))
	var up struct {
		URL string `json:"url"`
	}
	out.decode(t, &up)
	require.NotEmpty(t, up.URL)

	resp, out = a.call(t, http.MethodGet, up.URL, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, up.URL)
	assert.Equal(t, pngHeader, out.raw)
}
