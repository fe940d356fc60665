package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	weiboCode           = "weibo"
	defaultWeiboBaseURL = "https://weibo.com"
	defaultWeiboDelay   = 3 * time.Second
)

var weiboHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.82 Safari/537.36",
	"Referer":         "https://weibo.com",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
}

// Weibo fetches user profiles from the weibo.com ajax profile endpoint.
// The native account id is the numeric uid.
type Weibo struct {
	BaseURL string
	f       *fetcher
}

func NewWeibo(opts Options) *Weibo {
	if opts.Delay == 0 {
		opts.Delay = defaultWeiboDelay
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultWeiboBaseURL
	}
	return &Weibo{
		BaseURL: base,
		f:       newFetcher(weiboCode, weiboHeaders, opts),
	}
}

func (w *Weibo) PlatformCode() string { return weiboCode }

type weiboProfile struct {
	Data struct {
		User *struct {
			ScreenName     string `json:"screen_name"`
			FollowersCount int64  `json:"followers_count"`
			FriendsCount   int64  `json:"friends_count"`
			StatusesCount  int64  `json:"statuses_count"`
			Verified       bool   `json:"verified"`
			AvatarHD       string `json:"avatar_hd"`
		} `json:"user"`
	} `json:"data"`
}

func (w *Weibo) FetchAccount(ctx context.Context, nativeID string) (*AccountSnapshot, error) {
	uid := strings.TrimSpace(nativeID)
	if uid == "" {
		return nil, parseErr(weiboCode, fmt.Errorf("empty uid"))
	}

	endpoint := fmt.Sprintf("%s/ajax/profile/info?uid=%s", strings.TrimRight(w.BaseURL, "/"), url.QueryEscape(uid))
	body, err := w.f.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var profile weiboProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, parseErr(weiboCode, err)
	}
	user := profile.Data.User
	if user == nil || user.ScreenName == "" {
		return nil, upstreamErr(weiboCode, "profile payload missing user")
	}

	verified := user.Verified
	return &AccountSnapshot{
		NativeID:      uid,
		Name:          user.ScreenName,
		FollowerCount: user.FollowersCount,
		Extra: Extra{
			FollowingCount: &user.FriendsCount,
			PostCount:      &user.StatusesCount,
			Verified:       &verified,
		},
	}, nil
}
