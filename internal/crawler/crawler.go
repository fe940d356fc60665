package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AccountSnapshot is the normalized result of one account fetch, identical
// across platforms. Extra fields are optional and platform-dependent.
type AccountSnapshot struct {
	NativeID      string `json:"native_id"`
	Name          string `json:"name"`
	FollowerCount int64  `json:"follower_count"`
	Extra         Extra  `json:"extra"`
}

type Extra struct {
	FollowingCount *int64 `json:"following_count,omitempty"`
	PostCount      *int64 `json:"post_count,omitempty"`
	Verified       *bool  `json:"verified,omitempty"`
}

// Crawler fetches one account from one platform. Implementations differ
// only in endpoint shape, headers and parsing strategy.
type Crawler interface {
	PlatformCode() string
	FetchAccount(ctx context.Context, nativeID string) (*AccountSnapshot, error)
}

// Registry maps platform code to its crawler.
type Registry map[string]Crawler

func (r Registry) Lookup(code string) (Crawler, bool) {
	c, ok := r[code]
	return c, ok
}

// CookieSource is the middle link of the credential chain, normally the
// credential store. Re-queried on every request so a refreshed cookie takes
// effect mid-run.
type CookieSource interface {
	Get(ctx context.Context, platform string) (string, bool)
}

// Kind classifies fetch failures. Parse failures are never retried;
// network/http failures are retried up to the attempt ceiling.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindHTTP     Kind = "http"
	KindParse    Kind = "parse"
	KindUpstream Kind = "upstream"
)

// FetchError is the typed failure returned by every crawler. It carries the
// last observed cause after retries are exhausted.
type FetchError struct {
	Platform   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch failed (%s, http %d): %v", e.Platform, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Platform, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func networkErr(platform string, err error) *FetchError {
	return &FetchError{Platform: platform, Kind: KindNetwork, Err: err}
}

func httpErr(platform string, status int) *FetchError {
	return &FetchError{
		Platform:   platform,
		Kind:       KindHTTP,
		StatusCode: status,
		Err:        fmt.Errorf("unexpected status %d", status),
	}
}

func parseErr(platform string, err error) *FetchError {
	return &FetchError{Platform: platform, Kind: KindParse, Err: err}
}

func upstreamErr(platform string, msg string) *FetchError {
	return &FetchError{Platform: platform, Kind: KindUpstream, Err: fmt.Errorf("%s", msg)}
}

// Options configures a platform crawler. Zero values get platform defaults
// (real endpoint, stock headers, platform delay).
type Options struct {
	// Cookie, when non-empty, overrides the credential store and fallback.
	Cookie string
	// Cookies is the credential store; may be nil.
	Cookies CookieSource
	// Fallback is the static config cookie, last in the chain; may be empty,
	// meaning unauthenticated requests.
	Fallback string

	Delay      time.Duration
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}
