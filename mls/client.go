package mls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ErrDailyLimitExceeded is returned when the media feed reports its daily
// quota is spent. Callers should back off until the next window.
var ErrDailyLimitExceeded = errors.New("mls media feed daily quota exceeded")

type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter

	// Rendition overrides the w{width}_h{height} target that photo hrefs
	// are rewritten to. Empty means the package default.
	Rendition string
}

func NewClient(apiKey, baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.Logger = nil

	return &Client{
		key:     apiKey,
		baseURL: baseURL,
		http:    rc,
		// Feed plans cap media pulls; stay well under the per-second limit.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// PhotoAsset is one media entry from the feed.
type PhotoAsset struct {
	Href    string `json:"href"`
	Caption string `json:"caption"`
	Kind    string `json:"kind"`
}

// GetListingPhotos fetches the media set for one MLS number.
// Docs: GET /media/v2/listing/photos?mlsnumber=...
func (c *Client) GetListingPhotos(ctx context.Context, mlsNumber string) ([]PhotoAsset, error) {
	if mlsNumber == "" {
		return nil, errors.New("mls number required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("mlsnumber", mlsNumber)
	u := fmt.Sprintf("%s/media/v2/listing/photos?%s", c.baseURL, q.Encode())

	req, _ := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrDailyLimitExceeded
	}
	if resp.StatusCode >= 400 {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("mls media feed error %d: %v", resp.StatusCode, body)
	}

	raw, err := ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
	if err != nil {
		return nil, err
	}

	var root struct {
		Photos []PhotoAsset `json:"photos"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	out := make([]PhotoAsset, 0, len(root.Photos))
	for _, p := range root.Photos {
		if p.Href == "" {
			continue
		}
		p.Href = c.upgradeHref(p.Href)
		out = append(out, p)
	}
	return out, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
