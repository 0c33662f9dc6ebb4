package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/imagegen"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

type uploadPart struct {
	name string
	data []byte
}

func (ts *testServer) upload(t *testing.T, token string, fields map[string][]string, parts ...uploadPart) *http.Response {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}

	for _, p := range parts {
		fw, err := mw.CreateFormFile("files", p.name)
		require.NoError(t, err)

		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+"/api/v1/admin/media", &buf)
	require.NoError(t, err)

	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestUploadMedia_RejectsOversizedFiles(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	resp := ts.upload(t, token,
		map[string][]string{"current": {"https://cdn.example.org/old.png"}},
		uploadPart{name: "clinic.png", data: pngBytes},
		uploadPart{name: "poster.png", data: bytes.Repeat([]byte("x"), 2000)},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[uploadResponse](t, resp)
	require.Len(t, body.Uploaded, 1)
	require.Len(t, body.Rejected, 1)
	assert.Empty(t, body.Failed)

	assert.Equal(t, "clinic.png", body.Uploaded[0].Name)
	assert.Equal(t, "poster.png", body.Rejected[0].Name)
	assert.Equal(t, int64(1000), body.Rejected[0].Limit)
	assert.NotEmpty(t, body.Rejected[0].Notice.AR)
	assert.NotEmpty(t, body.Rejected[0].Notice.EN)

	assert.Equal(t, []string{"https://cdn.example.org/old.png", body.Uploaded[0].URL}, body.URLs)

	// The stored object is served from the local store.
	served := ts.do(t, http.MethodGet, body.Uploaded[0].URL, "", nil)
	assert.Equal(t, http.StatusOK, served.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/v1/admin/media/"+jsonID(body.Uploaded[0].ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	gone := ts.do(t, http.MethodGet, body.Uploaded[0].URL, "", nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestUploadMedia_LargeFileDoesNotFailBatch(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	tests := []struct {
		name  string
		parts []uploadPart
	}{
		{
			name: "large file last",
			parts: []uploadPart{
				{name: "clinic.png", data: pngBytes},
				{name: "video.mp4", data: bytes.Repeat([]byte("v"), 2<<20)},
			},
		},
		{
			name: "large file first",
			parts: []uploadPart{
				{name: "video.mp4", data: bytes.Repeat([]byte("v"), 2<<20)},
				{name: "clinic.png", data: pngBytes},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.upload(t, token, nil, tt.parts...)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decodeBody[uploadResponse](t, resp)
			require.Len(t, body.Uploaded, 1)
			require.Len(t, body.Rejected, 1)
			assert.Empty(t, body.Failed)

			assert.Equal(t, "clinic.png", body.Uploaded[0].Name)
			assert.Equal(t, "video.mp4", body.Rejected[0].Name)
			assert.Equal(t, int64(2<<20), body.Rejected[0].Size)
			assert.Equal(t, int64(1000), body.Rejected[0].Limit)
			assert.NotEmpty(t, body.Rejected[0].Notice.EN)
		})
	}
}

func TestUploadMedia_TooManyFiles(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	parts := make([]uploadPart, maxBatchFiles+1)
	for i := range parts {
		parts[i] = uploadPart{name: "f.png", data: pngBytes}
	}

	resp := ts.upload(t, token, nil, parts...)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "too_many_files", decodeBody[errorResponse](t, resp).Code)
}

func TestUploadMedia_SingleModeReplaces(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	resp := ts.upload(t, token,
		map[string][]string{"mode": {"single"}, "current": {"/media/old.png"}},
		uploadPart{name: "cover.png", data: pngBytes},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[uploadResponse](t, resp)
	require.Len(t, body.Uploaded, 1)
	assert.Equal(t, []string{body.Uploaded[0].URL}, body.URLs)
}

func TestUploadMedia_NoFiles(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	resp := ts.upload(t, token, map[string][]string{"mode": {"multi"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no_files", decodeBody[errorResponse](t, resp).Code)
}

func TestGenerateMedia_Disabled(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, editorEmail).Token

	resp := ts.do(t, http.MethodPost, "/api/v1/admin/media/generate", token, imagegen.Request{Category: "health"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_configured", decodeBody[errorResponse](t, resp).Code)
}

func TestGenerateMedia_GatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		req        imagegen.Request
		wantStatus int
		wantCode   string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, req: imagegen.Request{Category: "health"}, wantStatus: http.StatusTooManyRequests, wantCode: "rate_limited"},
		{name: "payment required", status: http.StatusPaymentRequired, req: imagegen.Request{Category: "health"}, wantStatus: http.StatusPaymentRequired, wantCode: "payment_required"},
		{name: "upstream failure", status: http.StatusInternalServerError, req: imagegen.Request{Category: "health"}, wantStatus: http.StatusBadGateway, wantCode: "generation_failed"},
		{name: "nothing to draw", status: http.StatusOK, req: imagegen.Request{Category: "unknown"}, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer gateway.Close()

			ts := setupServer(t, withImageGen(gateway.URL))
			token := ts.login(t, editorEmail).Token

			resp := ts.do(t, http.MethodPost, "/api/v1/admin/media/generate", token, tt.req)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode != "" {
				body := decodeBody[errorResponse](t, resp)
				assert.Equal(t, tt.wantCode, body.Code)
				assert.NotNil(t, body.Message)
			}
		})
	}
}

func TestGenerateMedia_StoresImage(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	}))
	defer gateway.Close()

	ts := setupServer(t, withImageGen(gateway.URL))
	token := ts.login(t, editorEmail).Token

	resp := ts.do(t, http.MethodPost, "/api/v1/admin/media/generate", token, imagegen.Request{Category: "nutrition"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	item := decodeBody[content.MediaItem](t, resp)
	assert.Equal(t, content.MediaGenerated, item.Source)
	assert.NotEmpty(t, item.Prompt)

	resp = ts.do(t, http.MethodGet, "/api/v1/admin/media", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decodeBody[listResponse[content.MediaItem]](t, resp).Total)
}

func withImageGen(endpoint string) func(*config.Config) {
	return func(c *config.Config) {
		c.ImageGen = config.ImageGenConfig{
			Enabled:  true,
			Endpoint: endpoint,
			APIKey:   "test-key",
			Model:    "image-model",
			Timeout:  "5s",
		}
	}
}
