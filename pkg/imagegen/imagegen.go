// Package imagegen generates cover images through an OpenAI-compatible
// images endpoint and stores them in the media library.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
	"github.com/healthassoc/bayan/pkg/media"
)

const (
	maxImageBytes  = 20 << 20
	maxErrorBody   = 4 << 10
	defaultTimeout = 60 * time.Second
)

var (
	// ErrRateLimited is returned when the gateway answers 429.
	ErrRateLimited = errors.New("image generation rate limited")

	// ErrPaymentRequired is returned when the gateway answers 402.
	ErrPaymentRequired = errors.New("image generation credits exhausted")

	// ErrNotConfigured is returned when generation is disabled.
	ErrNotConfigured = errors.New("image generation is not configured")

	// ErrEmptyRequest is returned when neither a category nor a prompt is
	// given, or the category is unknown.
	ErrEmptyRequest = errors.New("a known category or a prompt is required")
)

// Request selects what to draw. A non-empty Prompt wins over Category.
type Request struct {
	Category string      `json:"category,omitempty"`
	Prompt   string      `json:"prompt,omitempty"`
	Alt      locale.Text `json:"alt"`
}

// Storer stores generated images as media items.
type Storer interface {
	Put(ctx context.Context, obj media.Object) (*content.MediaItem, error)
}

// Client talks to the image gateway.
type Client struct {
	log    logrus.FieldLogger
	cfg    *config.ImageGenConfig
	http   *http.Client
	storer Storer
}

// New creates a client. A disabled config yields a client whose Generate
// returns ErrNotConfigured.
func New(log logrus.FieldLogger, cfg *config.ImageGenConfig, storer Storer) (*Client, error) {
	timeout := defaultTimeout

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing imagegen.timeout: %w", err)
		}

		timeout = d
	}

	return &Client{
		log:    log.WithField("component", "imagegen"),
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		storer: storer,
	}, nil
}

// Enabled reports whether generation is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.Endpoint != ""
}

type generateRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Generate draws an image, stores it and returns the new media item.
func (c *Client) Generate(ctx context.Context, req Request) (*content.MediaItem, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	data, err := c.requestImage(ctx, prompt)
	if err != nil {
		return nil, err
	}

	name := "generated.png"
	if req.Category != "" {
		name = req.Category + ".png"
	}

	item, err := c.storer.Put(ctx, media.Object{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: http.DetectContentType(data),
		Body:        bytes.NewReader(data),
		Source:      content.MediaGenerated,
		Prompt:      prompt,
		Alt:         req.Alt,
	})
	if err != nil {
		return nil, fmt.Errorf("storing generated image: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"category": req.Category,
		"key":      item.Key,
		"bytes":    len(data),
	}).Info("Generated image")

	return item, nil
}

func (c *Client) requestImage(ctx context.Context, prompt string) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{
		Model:          c.cfg.Model,
		Prompt:         prompt,
		N:              1,
		Size:           c.cfg.Size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling image gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 2*maxImageBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing gateway response: %w", err)
	}

	if len(out.Data) == 0 {
		return nil, fmt.Errorf("gateway returned no image")
	}

	img := out.Data[0]

	switch {
	case img.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}

		return data, nil
	case img.URL != "":
		return c.download(ctx, img.URL)
	default:
		return nil, fmt.Errorf("gateway returned an empty image")
	}
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("downloaded image exceeds %d bytes", maxImageBytes)
	}

	return data, nil
}

// statusError maps non-2xx gateway responses to errors.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrPaymentRequired, detail)
	default:
		return fmt.Errorf("image gateway returned status %d: %s", resp.StatusCode, detail)
	}
}
