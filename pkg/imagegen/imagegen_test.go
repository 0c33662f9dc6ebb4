package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/media"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

type fakeStorer struct {
	objects []media.Object
	data    [][]byte
}

func (f *fakeStorer) Put(_ context.Context, obj media.Object) (*content.MediaItem, error) {
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}

	f.objects = append(f.objects, obj)
	f.data = append(f.data, body)

	return &content.MediaItem{
		ID:          uint(len(f.objects)),
		Key:         "uploads/generated.png",
		Name:        obj.Name,
		URL:         "https://cdn.test/uploads/generated.png",
		ContentType: obj.ContentType,
		Source:      obj.Source,
		Prompt:      obj.Prompt,
	}, nil
}

func newTestClient(t *testing.T, endpoint string, storer Storer) *Client {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c, err := New(log, &config.ImageGenConfig{
		Enabled:  true,
		Endpoint: endpoint,
		APIKey:   "key-123",
		Model:    "image-model",
		Size:     "1024x1024",
		Timeout:  "5s",
	}, storer)
	require.NoError(t, err)

	return c
}

func TestGenerate_Base64Response(t *testing.T) {
	var got generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngHeader)}},
		})
	}))
	defer srv.Close()

	storer := &fakeStorer{}
	c := newTestClient(t, srv.URL, storer)

	item, err := c.Generate(context.Background(), Request{Category: "health"})
	require.NoError(t, err)

	assert.Equal(t, content.MediaGenerated, item.Source)
	assert.Equal(t, "image-model", got.Model)
	assert.Equal(t, 1, got.N)
	assert.Equal(t, "b64_json", got.ResponseFormat)
	assert.Contains(t, got.Prompt, "clinic")

	require.Len(t, storer.objects, 1)
	assert.Equal(t, "health.png", storer.objects[0].Name)
	assert.Equal(t, "image/png", storer.objects[0].ContentType)
	assert.Equal(t, pngHeader, storer.data[0])
}

func TestGenerate_URLResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngHeader)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/generate", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": srv.URL + "/image.png"}},
		})
	})

	storer := &fakeStorer{}
	c := newTestClient(t, srv.URL+"/generate", storer)

	_, err := c.Generate(context.Background(), Request{Prompt: "a mobile clinic"})
	require.NoError(t, err)

	require.Len(t, storer.data, 1)
	assert.Equal(t, pngHeader, storer.data[0])
	assert.Equal(t, "a mobile clinic", storer.objects[0].Prompt)
}

func TestGenerate_GatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "payment required", status: http.StatusPaymentRequired, wantErr: ErrPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			storer := &fakeStorer{}

			_, err := newTestClient(t, srv.URL, storer).Generate(context.Background(), Request{Category: "events"})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, storer.objects)
		})
	}

	t.Run("generic failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, &fakeStorer{}).Generate(context.Background(), Request{Category: "events"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.NotErrorIs(t, err, ErrPaymentRequired)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("empty data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, &fakeStorer{}).Generate(context.Background(), Request{Category: "events"})
		require.Error(t, err)
	})
}

func TestGenerate_NotConfigured(t *testing.T) {
	c, err := New(logrus.New(), &config.ImageGenConfig{}, &fakeStorer{})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Category: "health"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		contains string
		wantErr  bool
	}{
		{name: "custom prompt wins", req: Request{Category: "health", Prompt: "  a lighthouse "}, contains: "a lighthouse"},
		{name: "category prompt", req: Request{Category: "Nutrition"}, contains: "vegetables"},
		{name: "unknown category", req: Request{Category: "space"}, wantErr: true},
		{name: "empty request", req: Request{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPrompt(tt.req)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrEmptyRequest)

				return
			}

			require.NoError(t, err)
			assert.Contains(t, got, tt.contains)
		})
	}
}

func TestCategories_Sorted(t *testing.T) {
	cats := Categories()
	require.NotEmpty(t, cats)
	assert.IsNonDecreasing(t, cats)
}
