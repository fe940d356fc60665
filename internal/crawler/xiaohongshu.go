package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	xiaohongshuCode           = "xiaohongshu"
	defaultXiaohongshuBaseURL = "https://www.xiaohongshu.com"
	defaultXiaohongshuDelay   = 2 * time.Second
)

var xiaohongshuHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Referer":         "https://www.xiaohongshu.com/",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
	"Origin":          "https://www.xiaohongshu.com",
}

var (
	initialStateRe = regexp.MustCompile(`__INITIAL_STATE__\s*=\s*\{`)
	ogTitleRe      = regexp.MustCompile(`<meta name="og:title" content="([^"]+)"`)
	descFansRe     = regexp.MustCompile(`有(\d+)位粉丝`)
	profileIDRe    = regexp.MustCompile(`user/profile/([a-f0-9]+)`)

	// Ordered fallback extractors for pages where the state blob is absent
	// or unparseable. First hit wins; captures feed ParseCompactCount.
	followerRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?\s*万?)\s*粉丝`),
		regexp.MustCompile(`粉丝\s*(\d+(?:\.\d+)?万?)`),
		regexp.MustCompile(`(?i)fans["\s:]+(\d+)`),
		regexp.MustCompile(`粉丝["\s:]+(\d+)`),
		regexp.MustCompile(`(\d+)\s*位粉丝`),
		regexp.MustCompile(`(\d+)\s*个粉丝`),
		regexp.MustCompile(`粉丝数["\s:]+(\d+)`),
	}
	followingRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*关注`),
		regexp.MustCompile(`关注\s*(\d+)`),
		regexp.MustCompile(`(?i)follows["\s:]+(\d+)`),
		regexp.MustCompile(`(\d+)\s*个关注`),
	}
	noteRes = []*regexp.Regexp{
		regexp.MustCompile(`笔记\s*(\d+)`),
		regexp.MustCompile(`(\d+)\s*笔记`),
		regexp.MustCompile(`(?i)notes["\s:]+(\d+)`),
		regexp.MustCompile(`(\d+)\s*篇笔记`),
	}
)

// Xiaohongshu scrapes creator profile pages. There is no stable public API,
// so extraction is layered: the embedded __INITIAL_STATE__ blob first, then
// an ordered regex cascade over the raw HTML. The native account id is the
// profile URL slug; a full profile URL is accepted too.
type Xiaohongshu struct {
	BaseURL string
	f       *fetcher
}

func NewXiaohongshu(opts Options) *Xiaohongshu {
	if opts.Delay == 0 {
		opts.Delay = defaultXiaohongshuDelay
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultXiaohongshuBaseURL
	}
	return &Xiaohongshu{
		BaseURL: base,
		f:       newFetcher(xiaohongshuCode, xiaohongshuHeaders, opts),
	}
}

func (x *Xiaohongshu) PlatformCode() string { return xiaohongshuCode }

func (x *Xiaohongshu) FetchAccount(ctx context.Context, nativeID string) (*AccountSnapshot, error) {
	id := strings.TrimSpace(nativeID)
	if id == "" {
		return nil, parseErr(xiaohongshuCode, fmt.Errorf("empty profile id"))
	}
	profileURL := id
	if !strings.HasPrefix(profileURL, "http://") && !strings.HasPrefix(profileURL, "https://") {
		profileURL = fmt.Sprintf("%s/user/profile/%s", strings.TrimRight(x.BaseURL, "/"), id)
	}

	body, err := x.f.get(ctx, profileURL, nil)
	if err != nil {
		return nil, err
	}
	html := string(body)

	if snap, ok := x.fromInitialState(html, profileURL); ok {
		return snap, nil
	}
	return x.fromHTML(html, profileURL)
}

// fromInitialState tries the server-rendered state blob. The user object has
// moved between page revisions, so several candidate paths are probed; the
// first one carrying a nickname wins.
func (x *Xiaohongshu) fromInitialState(html, profileURL string) (*AccountSnapshot, bool) {
	blob, ok := initialStateJSON(html)
	if !ok {
		return nil, false
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, false
	}

	candidates := [][]string{
		{"user", "userPageData", "user"},
		{"user", "user"},
		{"userPageData", "user"},
		{"note", "noteDetail", "user"},
	}
	var user map[string]any
	for _, path := range candidates {
		node := dig(state, path...)
		if node == nil {
			continue
		}
		if nick, _ := node["nickname"].(string); nick != "" {
			user = node
			break
		}
	}
	if user == nil {
		return nil, false
	}

	nickname, _ := user["nickname"].(string)
	followers, ok := asCount(user["fans"])
	if !ok {
		return nil, false
	}

	snap := &AccountSnapshot{
		NativeID:      nativeIDFrom(user, profileURL),
		Name:          nickname,
		FollowerCount: followers,
	}
	if following, ok := asCount(user["follows"]); ok {
		snap.Extra.FollowingCount = &following
	}
	if notes, ok := asCount(user["notes"]); ok {
		snap.Extra.PostCount = &notes
	}
	if verify := dig(user, "officialVerify"); verify != nil {
		if t, ok := asCount(verify["type"]); ok {
			verified := t > 0
			snap.Extra.Verified = &verified
		}
	}
	return snap, true
}

// fromHTML is the last resort: scrape counts and the nickname out of the
// raw page text.
func (x *Xiaohongshu) fromHTML(html, profileURL string) (*AccountSnapshot, error) {
	snap := &AccountSnapshot{}

	if m := ogTitleRe.FindStringSubmatch(html); m != nil {
		snap.Name = strings.TrimSuffix(m[1], " - 小红书")
	}

	found := false
	for _, re := range followerRes {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		n, err := ParseCompactCount(m[1])
		if err != nil {
			continue
		}
		snap.FollowerCount = n
		found = true
		break
	}
	if !found {
		if m := descFansRe.FindStringSubmatch(html); m != nil {
			if n, err := ParseCompactCount(m[1]); err == nil {
				snap.FollowerCount = n
				found = true
			}
		}
	}
	if !found {
		return nil, parseErr(xiaohongshuCode, fmt.Errorf("follower count not found in page"))
	}

	for _, re := range followingRes {
		if m := re.FindStringSubmatch(html); m != nil {
			if n, err := ParseCompactCount(m[1]); err == nil {
				snap.Extra.FollowingCount = &n
				break
			}
		}
	}
	for _, re := range noteRes {
		if m := re.FindStringSubmatch(html); m != nil {
			if n, err := ParseCompactCount(m[1]); err == nil {
				snap.Extra.PostCount = &n
				break
			}
		}
	}

	snap.NativeID = idFromProfileURL(profileURL)
	return snap, nil
}

// initialStateJSON cuts the state object out of the page by scanning to the
// balanced closing brace. Stopping at the first "};" would truncate a blob
// whose string values contain that byte sequence.
func initialStateJSON(html string) (string, bool) {
	loc := initialStateRe.FindStringIndex(html)
	if loc == nil {
		return "", false
	}
	start := loc[1] - 1
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(html); i++ {
		c := html[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return html[start : i+1], true
			}
		}
	}
	return "", false
}

func nativeIDFrom(user map[string]any, profileURL string) string {
	if id, _ := user["user_id"].(string); id != "" {
		return id
	}
	return idFromProfileURL(profileURL)
}

func idFromProfileURL(profileURL string) string {
	if m := profileIDRe.FindStringSubmatch(profileURL); m != nil {
		return m[1]
	}
	return ""
}

func dig(node map[string]any, path ...string) map[string]any {
	cur := node
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// asCount normalizes the state blob's count values, which show up as JSON
// numbers or as display strings like "3.5万".
func asCount(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		parsed, err := ParseCompactCount(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
