package normalize

import (
	"sort"
	"strings"
)

// Raw-payload photo shapes vary by feed; probe known keys in a fixed order.
var photoArrayKeys = []string{"PhotoUrls", "photoUrls", "Photos", "photos", "Media", "media"}
var photoURLFields = []string{"Url", "url", "MediaURL", "MediaUrl", "mediaUrl", "mediaURL", "Uri", "uri", "LargeUrl", "largeUrl"}
var photoSingletonKeys = []string{"PrimaryPhotoUrl", "primaryPhotoUrl", "ThumbnailUrl", "thumbnailUrl"}

var resizeHints = []string{"width=", "w=", "height=", "h=", "resize", "fit="}

// Photos returns a de-duplicated, quality-ordered photo list. The photo
// table is authoritative; the raw payload is only probed when the table has
// nothing. Two URLs sharing a canonical key (URL minus query and fragment)
// are the same photo, and the highest-quality variant wins.
func Photos(tableURLs []string, raw map[string]any) []string {
	candidates := tableURLs
	if len(candidates) == 0 {
		candidates = payloadPhotoURLs(raw)
	}

	urls := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, u)
		}
	}

	// Lower penalty sorts first; ties keep feed order.
	sort.SliceStable(urls, func(i, j int) bool {
		return qualityPenalty(urls[i]) < qualityPenalty(urls[j])
	})

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := CanonicalPhotoKey(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

// CanonicalPhotoKey strips the fragment, then the query string.
func CanonicalPhotoKey(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return u
}

// qualityPenalty scores a URL by how likely it is to be a downsized
// variant. Lower is better.
func qualityPenalty(u string) int {
	lu := strings.ToLower(u)
	p := 0
	if strings.Contains(lu, "thumbnail") || strings.Contains(lu, "thumb") {
		p += 50
	}
	if strings.Contains(lu, "small") || strings.Contains(lu, "tiny") {
		p += 20
	}
	for _, hint := range resizeHints {
		if strings.Contains(lu, hint) {
			p += 15
			break
		}
	}
	if strings.Contains(lu, "large") || strings.Contains(lu, "full") {
		p -= 10
	}
	return p
}

func payloadPhotoURLs(raw map[string]any) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	for _, key := range photoArrayKeys {
		arr, ok := raw[key].([]any)
		if !ok {
			continue
		}
		for _, el := range arr {
			switch v := el.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				for _, f := range photoURLFields {
					if s, ok := v[f].(string); ok && s != "" {
						out = append(out, s)
						break
					}
				}
			}
		}
	}
	for _, key := range photoSingletonKeys {
		if s, ok := raw[key].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PrimaryPhoto picks the cover photo for a property: best normalized photo
// first, then the payload singleton keys as a last resort.
func PrimaryPhoto(tableURLs []string, raw map[string]any) string {
	photos := Photos(tableURLs, raw)
	if len(photos) > 0 {
		return photos[0]
	}
	for _, key := range photoSingletonKeys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
