package mls

import "regexp"

// Feed CDN hrefs carry a -w{width}_h{height} rendition suffix.
var renditionPattern = regexp.MustCompile(`-w\d+_h\d+`)

const defaultRendition = "w2048_h1536"

// upgradeHref rewrites the CDN rendition suffix to the client's target so
// the stored variant is the one downstream quality ranking prefers. Hrefs
// without a rendition suffix pass through untouched.
func (c *Client) upgradeHref(href string) string {
	if href == "" {
		return href
	}
	target := c.Rendition
	if target == "" {
		target = defaultRendition
	}
	return renditionPattern.ReplaceAllString(href, "-"+target)
}
