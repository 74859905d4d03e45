package uploadpost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/ctxutil"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

const maxCarouselPhotos = 7

// Client posts one finished carousel to the upload-post API. Each call
// is a single attempt; the retry policy lives with the caller.
type Client interface {
	UploadCarousel(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	AutoAddMusic bool
}

type UploadRequest struct {
	Username string
	Title    string
	Caption  string
	Photos   [][]byte
}

type UploadResult struct {
	PostID string
	URL    string
	Status string
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing upload-post API key")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.upload-post.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &client{
		log:        log.With("client", "UploadPostClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

// --- error types ---

// HTTPError is a non-2xx response. It exposes the status code for
// retry classification via httpx.HTTPStatusCoder.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("upload-post http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// PlatformError is a platform-level rejection carried inside an HTTP
// 200 body. Some of these (photo_pull_failed) are known to clear up on
// their own and are marked transient.
type PlatformError struct {
	Username  string
	Status    string
	Message   string
	Transient bool
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("upload-post platform error for %s: %s (status=%s)", e.Username, e.Message, e.Status)
}

// --- wire types ---

type uploadResponse struct {
	Results map[string]platformResult `json:"results"`
}

type platformResult struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	PublishID string `json:"publish_id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

func (c *client) UploadCarousel(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Photos) == 0 {
		return nil, fmt.Errorf("upload-post: photos required")
	}
	if len(req.Photos) > maxCarouselPhotos {
		return nil, fmt.Errorf("upload-post: at most %d photos per carousel, got %d", maxCarouselPhotos, len(req.Photos))
	}
	if strings.TrimSpace(req.Caption) == "" {
		return nil, fmt.Errorf("upload-post: caption required")
	}
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("upload-post: username required")
	}

	title := strings.TrimSpace(req.Title)
	title = strings.Trim(title, `"`)
	if title == "" {
		title = req.Caption
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"title":             title,
		"caption":           req.Caption,
		"platform[]":        "tiktok",
		"user":              req.Username,
		"auto_add_music":    strconv.FormatBool(c.cfg.AutoAddMusic),
		"disable_comment":   "false",
		"branded_content":   "false",
		"photo_cover_index": "0",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("upload-post: write field %s: %w", k, err)
		}
	}

	for i, photo := range req.Photos {
		if len(photo) == 0 {
			return nil, fmt.Errorf("upload-post: photo %d is empty", i+1)
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos[]"; filename="image_%d.jpg"`, i+1))
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("upload-post: create photo part: %w", err)
		}
		if _, err := part.Write(photo); err != nil {
			return nil, fmt.Errorf("upload-post: write photo part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload-post: close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.cfg.BaseURL+"/api/upload_photos", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Apikey "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		preview := string(raw)
		if len(preview) > 500 {
			preview = preview[:500]
		}
		return nil, fmt.Errorf("upload-post: non-JSON response: %q", preview)
	}

	result, ok := parsed.Results["tiktok"]
	if !ok {
		return nil, &PlatformError{Username: req.Username, Message: "no tiktok result in response"}
	}
	if result.Error != "" {
		return nil, &PlatformError{
			Username:  req.Username,
			Status:    result.Status,
			Message:   result.Error,
			Transient: strings.Contains(strings.ToLower(result.Error), "photo_pull_failed"),
		}
	}
	if !result.Success || !isCompleteStatus(result.Status) {
		return nil, &PlatformError{
			Username: req.Username,
			Status:   result.Status,
			Message:  fmt.Sprintf("upload incomplete (success=%t)", result.Success),
		}
	}

	c.log.Info("Carousel uploaded",
		"user", req.Username,
		"photos", len(req.Photos),
		"publish_id", result.PublishID,
		"status", result.Status,
	)

	return &UploadResult{
		PostID: result.PublishID,
		URL:    result.URL,
		Status: result.Status,
	}, nil
}

func isCompleteStatus(status string) bool {
	// The API reports PUBLISH_COMPLETE once the post is live; an empty
	// status with success=true is accepted for older response shapes.
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PUBLISH_COMPLETE", "":
		return true
	}
	return false
}
