package normalize

import (
	"strings"
)

// AddressParts holds the structured street components from the listing row.
// Structured data is authoritative over anything in the raw payload.
type AddressParts struct {
	StreetNumber    string
	StreetDirPrefix string
	StreetName      string
	StreetSuffix    string
	UnitNumber      string
}

// NoAddress marks a listing where no street-level signal exists at all.
const NoAddress = "(No address)"

// addressExtractor probes one provider-field shape from a raw payload.
type addressExtractor struct {
	name    string
	extract func(raw map[string]any) string
}

// Probing order matters: unparsed first-line fields are the most reliable
// street segments across feeds; synthesized variants come last.
var addressExtractors = buildAddressExtractors()

func buildAddressExtractors() []addressExtractor {
	keys := []string{
		"UnparsedAddress",
		"UnparsedFirstLineAddress",
		"UnparsedFirstLine",
		"StreetAddress",
		"AddressLine1",
		"FullStreetAddress",
		"PropertyAddress",
		"Address",
	}
	out := make([]addressExtractor, 0, len(keys)+2)
	for _, k := range keys {
		key := k
		out = append(out, addressExtractor{name: key, extract: func(raw map[string]any) string {
			return rawString(raw, key)
		}})
	}
	out = append(out, addressExtractor{name: "synthesized", extract: synthesizeStreetLine})
	out = append(out, addressExtractor{name: "synthesized_unit", extract: func(raw map[string]any) string {
		base := synthesizeStreetLine(raw)
		unit := rawString(raw, "UnitNumber")
		if base == "" || unit == "" {
			return ""
		}
		return base + " #" + unit
	}})
	return out
}

// Address resolves one human-readable street line. It never returns an
// empty string, and a full mailing address never substitutes for a missing
// street line: structured parts win, then raw street-level candidates with
// anything after the first comma discarded, then the fallback title.
func Address(parts AddressParts, raw map[string]any, fallbackTitle string) string {
	if line := structuredStreetLine(parts); line != "" {
		return line
	}

	for _, ex := range addressExtractors {
		candidate := strings.TrimSpace(ex.extract(raw))
		if candidate == "" {
			continue
		}
		// Some feeds concatenate city/state/zip; keep the street segment.
		if i := strings.IndexByte(candidate, ','); i >= 0 {
			candidate = strings.TrimSpace(candidate[:i])
		}
		if candidate != "" {
			return candidate
		}
	}

	if t := strings.TrimSpace(fallbackTitle); t != "" {
		return t
	}
	return NoAddress
}

func structuredStreetLine(p AddressParts) string {
	base := collapseSpaces(strings.Join([]string{
		p.StreetNumber, p.StreetDirPrefix, p.StreetName, p.StreetSuffix,
	}, " "))
	if base == "" {
		return ""
	}
	if unit := strings.TrimSpace(p.UnitNumber); unit != "" {
		return base + " #" + unit
	}
	return base
}

func synthesizeStreetLine(raw map[string]any) string {
	num := rawString(raw, "StreetNumber")
	name := rawString(raw, "StreetName")
	if num == "" || name == "" {
		return ""
	}
	return collapseSpaces(strings.Join([]string{
		num, rawString(raw, "StreetDirPrefix"), name, rawString(raw, "StreetSuffix"),
	}, " "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
