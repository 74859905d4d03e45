package app

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/envutil"
)

// Config is built once at process start and passed explicitly into
// every component constructor. Nothing reads it ambiently afterwards.
type Config struct {
	Accounts []domain.Account

	PoolPrefixes map[domain.Pool]string

	HookTexts    []string
	CTATexts     []string
	Hashtags     []string
	HashtagCount int
	BodyCount    int

	HookStyle domain.TextStyle
	CTAStyle  domain.TextStyle

	ImageQuality int
	TargetWidth  int
	TargetHeight int

	RetentionWindow time.Duration

	MaxRetries  int
	RetryDelay  time.Duration
	CallTimeout time.Duration

	FontPath         string
	BucketName       string
	UploadPostAPIKey string
	AutoAddMusic     bool
	UsageDBDriver    string
	UsageDBDSN       string
}

type styleSpec struct {
	FontSize       float64 `yaml:"font_size"`
	FontColor      string  `yaml:"font_color"`
	StrokeColor    string  `yaml:"stroke_color"`
	StrokeWidth    int     `yaml:"stroke_width"`
	VerticalPosPct int     `yaml:"vertical_position_percent"`
	MaxWidthPct    int     `yaml:"max_width_percent"`
}

type fileConfig struct {
	Accounts []domain.Account `yaml:"accounts"`

	Pools struct {
		Hook string `yaml:"hook"`
		Body string `yaml:"body"`
		CTA  string `yaml:"cta"`
	} `yaml:"pools"`

	HookTexts    []string `yaml:"hook_texts"`
	CTATexts     []string `yaml:"cta_texts"`
	Hashtags     []string `yaml:"hashtags"`
	HashtagCount int      `yaml:"hashtag_count"`
	BodyCount    int      `yaml:"body_slides"`

	Styles struct {
		Hook styleSpec `yaml:"hook"`
		CTA  styleSpec `yaml:"cta"`
	} `yaml:"styles"`

	ImageQuality   int `yaml:"image_quality"`
	TargetWidth    int `yaml:"target_width"`
	TargetHeight   int `yaml:"target_height"`
	RetentionHours int `yaml:"retention_hours"`
}

// LoadConfig reads the accounts/content YAML file and the env knobs.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{
		Accounts: fc.Accounts,
		PoolPrefixes: map[domain.Pool]string{
			domain.PoolHook: withDefault(fc.Pools.Hook, "hook-photos/"),
			domain.PoolBody: withDefault(fc.Pools.Body, "body-photos/"),
			domain.PoolCTA:  withDefault(fc.Pools.CTA, "cta-photos/"),
		},
		HookTexts:    fc.HookTexts,
		CTATexts:     fc.CTATexts,
		Hashtags:     fc.Hashtags,
		HashtagCount: intDefault(fc.HashtagCount, 12),
		BodyCount:    intDefault(fc.BodyCount, 5),
		ImageQuality: intDefault(fc.ImageQuality, 90),
		TargetWidth:  intDefault(fc.TargetWidth, 1080),
		TargetHeight: intDefault(fc.TargetHeight, 1920),

		RetentionWindow: time.Duration(intDefault(fc.RetentionHours, 72)) * time.Hour,

		MaxRetries:  envutil.Int("PUBLISH_MAX_RETRIES", 3),
		RetryDelay:  envutil.DurationSeconds("PUBLISH_RETRY_DELAY_SECONDS", 5*time.Second),
		CallTimeout: envutil.DurationSeconds("EXTERNAL_CALL_TIMEOUT_SECONDS", 120*time.Second),

		FontPath:         envutil.String("OVERLAY_FONT", ""),
		BucketName:       strings.TrimSpace(os.Getenv("ASSET_GCS_BUCKET_NAME")),
		UploadPostAPIKey: strings.TrimSpace(os.Getenv("UPLOAD_POST_API_KEY")),
		AutoAddMusic:     envutil.Bool("UPLOAD_AUTO_ADD_MUSIC", true),
		UsageDBDriver:    envutil.String("USAGE_DB_DRIVER", "sqlite"),
		UsageDBDSN:       envutil.String("USAGE_DB_DSN", "carousel_usage.db"),
	}

	cfg.HookStyle, err = parseStyle(fc.Styles.Hook, domain.TextStyle{
		FontSize:       48,
		FontColor:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		StrokeColor:    color.NRGBA{A: 255},
		StrokeWidth:    2,
		VerticalPosPct: 70,
		MaxWidthPct:    85,
	})
	if err != nil {
		return nil, fmt.Errorf("hook style: %w", err)
	}
	cfg.CTAStyle, err = parseStyle(fc.Styles.CTA, domain.TextStyle{
		FontSize:       64,
		FontColor:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		StrokeColor:    color.NRGBA{A: 255},
		StrokeWidth:    2,
		VerticalPosPct: 50,
		MaxWidthPct:    85,
	})
	if err != nil {
		return nil, fmt.Errorf("cta style: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("config: no accounts defined")
	}
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if strings.TrimSpace(a.Username) == "" {
			return fmt.Errorf("config: account %q missing username", a.Name)
		}
		if a.HookTextMode == "" {
			a.HookTextMode = domain.HookTextOverlay
		}
		if a.HookTextMode != domain.HookTextOverlay && a.HookTextMode != domain.HookTextEmbedded {
			return fmt.Errorf("config: account %q has invalid hook_text_mode %q", a.Name, a.HookTextMode)
		}
	}
	if len(c.CTATexts) == 0 {
		return fmt.Errorf("config: cta_texts is empty")
	}
	if len(c.Hashtags) == 0 {
		return fmt.Errorf("config: hashtags is empty")
	}
	if len(c.HookTexts) == 0 {
		// Only needed by accounts in overlay mode.
		for _, a := range c.Accounts {
			if a.HookTextMode == domain.HookTextOverlay {
				return fmt.Errorf("config: hook_texts is empty but account %q uses overlay mode", a.Name)
			}
		}
	}
	if c.BodyCount < 1 {
		return fmt.Errorf("config: body_slides must be >= 1")
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return fmt.Errorf("config: image_quality must be in 1..100")
	}
	return nil
}

// AccountByUsername returns the account with the given posting username.
func (c *Config) AccountByUsername(username string) (domain.Account, bool) {
	for _, a := range c.Accounts {
		if a.Username == username {
			return a, true
		}
	}
	return domain.Account{}, false
}

func parseStyle(s styleSpec, def domain.TextStyle) (domain.TextStyle, error) {
	out := def
	if s.FontSize > 0 {
		out.FontSize = s.FontSize
	}
	if s.StrokeWidth > 0 {
		out.StrokeWidth = s.StrokeWidth
	}
	if s.VerticalPosPct > 0 {
		out.VerticalPosPct = s.VerticalPosPct
	}
	if s.MaxWidthPct > 0 {
		out.MaxWidthPct = s.MaxWidthPct
	}
	if strings.TrimSpace(s.FontColor) != "" {
		c, err := parseHexColor(s.FontColor)
		if err != nil {
			return out, fmt.Errorf("font_color: %w", err)
		}
		out.FontColor = c
	}
	if strings.TrimSpace(s.StrokeColor) != "" {
		c, err := parseHexColor(s.StrokeColor)
		if err != nil {
			return out, fmt.Errorf("stroke_color: %w", err)
		}
		out.StrokeColor = c
	}
	return out, nil
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("expected 6 hex chars, got %q", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 3 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}, nil
}

func withDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if !strings.HasSuffix(v, "/") {
		v += "/"
	}
	return v
}

func intDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
