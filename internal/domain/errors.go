package domain

import "fmt"

// ErrorKind labels the terminal failure class of a run.
type ErrorKind string

const (
	ErrKindNone             ErrorKind = ""
	ErrKindEmptyPool        ErrorKind = "empty_pool"
	ErrKindRender           ErrorKind = "render"
	ErrKindAssetFetch       ErrorKind = "asset_fetch"
	ErrKindTransientPublish ErrorKind = "transient_publish"
	ErrKindTerminalPublish  ErrorKind = "terminal_publish"
)

// EmptyPoolError means a pool has no assets at all. Fatal for the run:
// nothing can be assembled without imagery.
type EmptyPoolError struct {
	Pool Pool
}

func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("pool %s has no assets", e.Pool)
}

// RenderError means a slide could not be composed, usually because the
// base image failed to decode. Fatal for the run; no partial carousel
// is ever published.
type RenderError struct {
	Pool    Pool
	AssetID string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render slide from %s/%s: %v", e.Pool, e.AssetID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
