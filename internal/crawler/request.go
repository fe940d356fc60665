package crawler

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	requestTimeout = 30 * time.Second
)

// fetcher is the shared request layer under every platform crawler:
// credential chain, stock headers, bounded retry with status-dependent
// backoff, and mandatory pacing after every network call.
type fetcher struct {
	platform string
	client   *http.Client
	headers  map[string]string

	cookie   string
	cookies  CookieSource
	fallback string

	delay time.Duration
	// backoffUnit scales all retry sleeps; 1s in production, shrunk in tests.
	backoffUnit time.Duration

	logger *zap.Logger
}

func newFetcher(platform string, headers map[string]string, opts Options) *fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fetcher{
		platform:    platform,
		client:      client,
		headers:     headers,
		cookie:      opts.Cookie,
		cookies:     opts.Cookies,
		fallback:    opts.Fallback,
		delay:       opts.Delay,
		backoffUnit: time.Second,
		logger:      logger,
	}
}

// resolveCookie walks the chain: fixed override, then credential store, then
// static fallback. Evaluated per request so a cookie refreshed mid-run is
// picked up by the very next call.
func (f *fetcher) resolveCookie(ctx context.Context) string {
	if f.cookie != "" {
		return f.cookie
	}
	if f.cookies != nil {
		if c, ok := f.cookies.Get(ctx, f.platform); ok && c != "" {
			return c
		}
	}
	return f.fallback
}

// get fetches url, retrying transient failures up to maxAttempts. On
// exhaustion the last failure is returned. extra carries per-request
// headers such as signatures; the fetcher's own header set is never
// written to, so one crawler instance is safe for concurrent fetches.
func (f *fetcher) get(ctx context.Context, url string, extra map[string]string) ([]byte, error) {
	var last *FetchError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, ferr := f.doOnce(ctx, url, extra)
		if ferr == nil {
			return body, nil
		}
		last = ferr

		var backoff time.Duration
		switch {
		case ferr.Kind == KindNetwork:
			backoff = 2 * f.backoffUnit
		case ferr.StatusCode == http.StatusForbidden:
			backoff = time.Duration(2*attempt) * f.backoffUnit
		case ferr.StatusCode == http.StatusTooManyRequests:
			backoff = time.Duration(5*attempt) * f.backoffUnit
		default:
			backoff = f.backoffUnit
		}
		f.logger.Warn("request failed",
			zap.String("platform", f.platform),
			zap.Int("attempt", attempt),
			zap.Int("status", ferr.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Error(ferr.Err),
		)
		if attempt < maxAttempts {
			if err := sleep(ctx, backoff); err != nil {
				return nil, networkErr(f.platform, err)
			}
		}
	}
	return nil, last
}

// doOnce performs a single request. The platform's inter-request delay is
// honored after the call no matter how it ends.
func (f *fetcher) doOnce(ctx context.Context, url string, extra map[string]string) ([]byte, *FetchError) {
	defer func() {
		_ = sleep(ctx, f.delay)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, networkErr(f.platform, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	if cookie := f.resolveCookie(ctx); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, networkErr(f.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, httpErr(f.platform, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkErr(f.platform, err)
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
