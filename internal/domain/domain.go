package domain

import (
	"image/color"
	"time"
)

// Pool names one slide role's image collection in the remote store.
type Pool string

const (
	PoolHook Pool = "HOOK"
	PoolBody Pool = "BODY"
	PoolCTA  Pool = "CTA"
)

func (p Pool) Valid() bool {
	switch p {
	case PoolHook, PoolBody, PoolCTA:
		return true
	}
	return false
}

// HookTextMode controls where the hook slide's phrase comes from.
type HookTextMode string

const (
	// HookTextOverlay draws a phrase from the hook text pool onto the slide.
	HookTextOverlay HookTextMode = "overlay"
	// HookTextEmbedded assumes the phrase is baked into the source image.
	HookTextEmbedded HookTextMode = "embedded"
)

// Account is one posting identity with its notification target.
// Schedule times are data for the external trigger, not for this process.
type Account struct {
	Name         string       `yaml:"name"`
	Username     string       `yaml:"username"`
	PostTimes    []string     `yaml:"post_times"`
	WebhookURL   string       `yaml:"webhook_url"`
	HookTextMode HookTextMode `yaml:"hook_text_mode"`
}

// AssetRecord is one fetched source image. It lives for a single run.
type AssetRecord struct {
	Pool      Pool
	AssetID   string
	Content   []byte
	FetchedAt time.Time
}

// TextStyle drives overlay layout for one slide role.
type TextStyle struct {
	FontSize       float64
	FontColor      color.NRGBA
	StrokeColor    color.NRGBA
	StrokeWidth    int
	VerticalPosPct int
	MaxWidthPct    int
}

// Carousel is the finished post: rendered slides in publish order
// (hook first, CTA last) plus caption text. Immutable once assembled.
type Carousel struct {
	AccountID string
	Username  string
	Slides    [][]byte
	Title     string
	Caption   string
	Hashtags  []string
}

// PublishOutcome is the single terminal result of one account's run.
type PublishOutcome struct {
	AccountID string
	Success   bool
	Attempts  int
	ErrorKind ErrorKind
	PostID    string
	PostURL   string
	Timestamp time.Time
}

// RunEvent is handed to the notification collaborator, one per run.
type RunEvent struct {
	AccountID string
	Success   bool
	Attempts  int
	ErrorKind ErrorKind
	Detail    string
	PostURL   string
	Timestamp time.Time
}
