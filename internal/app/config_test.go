package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
accounts:
  - name: main
    username: main_tiktok
    hook_text_mode: overlay
  - name: alt
    username: alt_tiktok
    hook_text_mode: embedded
    webhook_url: https://discord.com/api/webhooks/1/x
hook_texts:
  - "no one talks about this"
cta_texts:
  - "follow for part two"
hashtags:
  - "#fyp"
  - "#viral"
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Accounts) != 2 {
		t.Fatalf("got %d accounts", len(cfg.Accounts))
	}
	if cfg.BodyCount != 5 || cfg.HashtagCount != 12 {
		t.Fatalf("body=%d hashtags=%d, want defaults 5/12", cfg.BodyCount, cfg.HashtagCount)
	}
	if cfg.ImageQuality != 90 || cfg.TargetWidth != 1080 || cfg.TargetHeight != 1920 {
		t.Fatalf("image defaults wrong: q=%d %dx%d", cfg.ImageQuality, cfg.TargetWidth, cfg.TargetHeight)
	}
	if cfg.RetentionWindow != 72*time.Hour {
		t.Fatalf("retention = %v, want 72h", cfg.RetentionWindow)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != 5*time.Second {
		t.Fatalf("retry defaults wrong: %d/%v", cfg.MaxRetries, cfg.RetryDelay)
	}
	if got := cfg.PoolPrefixes[domain.PoolHook]; got != "hook-photos/" {
		t.Fatalf("hook prefix = %q", got)
	}
	if cfg.HookStyle.FontSize != 48 || cfg.CTAStyle.FontSize != 64 {
		t.Fatalf("style defaults wrong: hook=%v cta=%v", cfg.HookStyle.FontSize, cfg.CTAStyle.FontSize)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
pools:
  hook: my-hooks
body_slides: 3
hashtag_count: 6
retention_hours: 24
styles:
  hook:
    font_size: 52
    font_color: "#FFEE00"
    vertical_position_percent: 60
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.PoolPrefixes[domain.PoolHook]; got != "my-hooks/" {
		t.Fatalf("hook prefix = %q, want trailing slash added", got)
	}
	if cfg.BodyCount != 3 || cfg.HashtagCount != 6 {
		t.Fatalf("body=%d hashtags=%d", cfg.BodyCount, cfg.HashtagCount)
	}
	if cfg.RetentionWindow != 24*time.Hour {
		t.Fatalf("retention = %v", cfg.RetentionWindow)
	}
	if cfg.HookStyle.FontSize != 52 || cfg.HookStyle.VerticalPosPct != 60 {
		t.Fatalf("hook style = %+v", cfg.HookStyle)
	}
	if cfg.HookStyle.FontColor.R != 0xFF || cfg.HookStyle.FontColor.G != 0xEE || cfg.HookStyle.FontColor.B != 0x00 {
		t.Fatalf("font color = %+v", cfg.HookStyle.FontColor)
	}
	// Unspecified style fields keep their defaults.
	if cfg.HookStyle.StrokeWidth != 2 || cfg.HookStyle.MaxWidthPct != 85 {
		t.Fatalf("hook style lost defaults: %+v", cfg.HookStyle)
	}
}

func TestLoadConfigDefaultsHookMode(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
accounts:
  - name: main
    username: main_tiktok
hook_texts: ["h"]
cta_texts: ["c"]
hashtags: ["#t"]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Accounts[0].HookTextMode != domain.HookTextOverlay {
		t.Fatalf("hook mode = %q, want overlay default", cfg.Accounts[0].HookTextMode)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			"no accounts",
			`{cta_texts: ["c"], hashtags: ["#t"]}`,
			"no accounts",
		},
		{
			"missing username",
			`{accounts: [{name: a}], cta_texts: ["c"], hashtags: ["#t"]}`,
			"missing username",
		},
		{
			"bad hook mode",
			`{accounts: [{name: a, username: u, hook_text_mode: sideways}], cta_texts: ["c"], hashtags: ["#t"]}`,
			"hook_text_mode",
		},
		{
			"no cta texts",
			`{accounts: [{name: a, username: u, hook_text_mode: embedded}], hashtags: ["#t"]}`,
			"cta_texts",
		},
		{
			"overlay account without hook texts",
			`{accounts: [{name: a, username: u, hook_text_mode: overlay}], cta_texts: ["c"], hashtags: ["#t"]}`,
			"hook_texts",
		},
		{
			"bad color",
			`{accounts: [{name: a, username: u, hook_text_mode: embedded}], cta_texts: ["c"], hashtags: ["#t"], styles: {cta: {font_color: "red"}}}`,
			"cta style",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestAccountByUsername(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, ok := cfg.AccountByUsername("alt_tiktok")
	if !ok || a.Name != "alt" {
		t.Fatalf("got %+v ok=%v", a, ok)
	}
	if _, ok := cfg.AccountByUsername("missing"); ok {
		t.Fatal("found account that does not exist")
	}
}
