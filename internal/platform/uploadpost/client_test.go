package uploadpost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := New(logger.Nop(), Config{APIKey: "test-key", BaseURL: baseURL, AutoAddMusic: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func validRequest() UploadRequest {
	return UploadRequest{
		Username: "acct_tiktok",
		Title:    "hook line",
		Caption:  "cta\n\n#a #b",
		Photos:   [][]byte{{0xFF, 0xD8}, {0xFF, 0xD8}},
	}
}

func TestUploadCarouselWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload_photos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Apikey test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("user"); got != "acct_tiktok" {
			t.Errorf("user = %q", got)
		}
		if got := r.FormValue("title"); got != "hook line" {
			t.Errorf("title = %q", got)
		}
		if got := r.FormValue("platform[]"); got != "tiktok" {
			t.Errorf("platform[] = %q", got)
		}
		if got := r.FormValue("auto_add_music"); got != "true" {
			t.Errorf("auto_add_music = %q", got)
		}
		photos := r.MultipartForm.File["photos[]"]
		if len(photos) != 2 {
			t.Fatalf("got %d photo parts, want 2", len(photos))
		}
		if photos[0].Filename != "image_1.jpg" {
			t.Errorf("first photo filename = %q", photos[0].Filename)
		}
		if ct := photos[0].Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("photo content type = %q", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"tiktok":{"success":true,"status":"PUBLISH_COMPLETE","publish_id":"p123","url":"https://tiktok.com/p/123"}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.UploadCarousel(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.PostID != "p123" || res.URL != "https://tiktok.com/p/123" {
		t.Fatalf("result = %+v", res)
	}
}

func TestUploadCarouselEmptyTitleFallsBackToCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(32 << 20)
		if got := r.FormValue("title"); got != "cta\n\n#a #b" {
			t.Errorf("title = %q, want caption fallback", got)
		}
		_, _ = w.Write([]byte(`{"results":{"tiktok":{"success":true,"status":"PUBLISH_COMPLETE"}}}`))
	}))
	defer srv.Close()

	req := validRequest()
	req.Title = `""`
	c := newTestClient(t, srv.URL)
	if _, err := c.UploadCarousel(context.Background(), req); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestUploadCarouselHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.UploadCarousel(context.Background(), validRequest())
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("want HTTPError, got %v", err)
	}
	if herr.HTTPStatusCode() != http.StatusTooManyRequests {
		t.Fatalf("status = %d", herr.HTTPStatusCode())
	}
}

func TestUploadCarouselPlatformErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		transient bool
	}{
		{
			"photo pull failure is transient",
			`{"results":{"tiktok":{"success":false,"status":"FAILED","error":"photo_pull_failed: media not ready"}}}`,
			true,
		},
		{
			"other platform errors are terminal",
			`{"results":{"tiktok":{"success":false,"status":"FAILED","error":"spam_risk_too_many_posts"}}}`,
			false,
		},
		{
			"incomplete status without error is terminal",
			`{"results":{"tiktok":{"success":true,"status":"PROCESSING"}}}`,
			false,
		},
		{
			"missing tiktok result is terminal",
			`{"results":{}}`,
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			_, err := c.UploadCarousel(context.Background(), validRequest())
			var perr *PlatformError
			if !errors.As(err, &perr) {
				t.Fatalf("want PlatformError, got %v", err)
			}
			if perr.Transient != tc.transient {
				t.Fatalf("transient = %v, want %v (%v)", perr.Transient, tc.transient, perr)
			}
		})
	}
}

func TestUploadCarouselInputValidation(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")

	req := validRequest()
	req.Photos = nil
	if _, err := c.UploadCarousel(context.Background(), req); err == nil {
		t.Fatal("want error for zero photos")
	}

	req = validRequest()
	req.Photos = make([][]byte, 8)
	for i := range req.Photos {
		req.Photos[i] = []byte{1}
	}
	if _, err := c.UploadCarousel(context.Background(), req); err == nil {
		t.Fatal("want error for more than 7 photos")
	}

	req = validRequest()
	req.Caption = "  "
	if _, err := c.UploadCarousel(context.Background(), req); err == nil {
		t.Fatal("want error for empty caption")
	}

	req = validRequest()
	req.Username = ""
	if _, err := c.UploadCarousel(context.Background(), req); err == nil {
		t.Fatal("want error for empty username")
	}
}
