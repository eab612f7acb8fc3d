package normalize

import "testing"

func TestAddressStructuredWins(t *testing.T) {
	parts := AddressParts{StreetNumber: "123", StreetName: "Main", StreetSuffix: "St"}
	raw := map[string]any{"UnparsedAddress": "999 Other Rd, Somewhere, CA"}
	if got := Address(parts, raw, "ignored"); got != "123 Main St" {
		t.Errorf("Address = %q, want %q", got, "123 Main St")
	}
}

func TestAddressStructuredUnit(t *testing.T) {
	parts := AddressParts{StreetNumber: "77", StreetDirPrefix: "N", StreetName: "Harbor", StreetSuffix: "Blvd", UnitNumber: "4B"}
	if got := Address(parts, nil, ""); got != "77 N Harbor Blvd #4B" {
		t.Errorf("Address = %q", got)
	}
}

func TestAddressCollapsesSpaces(t *testing.T) {
	parts := AddressParts{StreetNumber: " 9 ", StreetName: "  Elm  "}
	if got := Address(parts, nil, ""); got != "9 Elm" {
		t.Errorf("Address = %q, want %q", got, "9 Elm")
	}
}

func TestAddressCommaTruncation(t *testing.T) {
	raw := map[string]any{"UnparsedAddress": "456 Oak Ave, Irvine, CA 92618"}
	if got := Address(AddressParts{}, raw, ""); got != "456 Oak Ave" {
		t.Errorf("Address = %q, want %q", got, "456 Oak Ave")
	}
}

func TestAddressRawKeyPriority(t *testing.T) {
	raw := map[string]any{
		"Address":         "1 Last Resort Way",
		"StreetAddress":   "2 Mid Priority Pl",
		"UnparsedAddress": "3 First Choice Ct",
	}
	if got := Address(AddressParts{}, raw, ""); got != "3 First Choice Ct" {
		t.Errorf("Address = %q, want highest-priority key", got)
	}
}

func TestAddressSynthesizedFromComponents(t *testing.T) {
	raw := map[string]any{
		"StreetNumber":    "850",
		"StreetDirPrefix": "E",
		"StreetName":      "Ocean",
		"StreetSuffix":    "Dr",
	}
	if got := Address(AddressParts{}, raw, ""); got != "850 E Ocean Dr" {
		t.Errorf("Address = %q", got)
	}
	// Synthesis requires both number and name.
	if got := Address(AddressParts{}, map[string]any{"StreetName": "Ocean"}, "Listing 9"); got != "Listing 9" {
		t.Errorf("partial components should not synthesize, got %q", got)
	}
}

func TestAddressSynthesizedNumericStreetNumber(t *testing.T) {
	raw := map[string]any{"StreetNumber": float64(1200), "StreetName": "Vine"}
	if got := Address(AddressParts{}, raw, ""); got != "1200 Vine" {
		t.Errorf("Address = %q", got)
	}
}

func TestAddressFallbackTitle(t *testing.T) {
	if got := Address(AddressParts{}, nil, "Cozy Bungalow"); got != "Cozy Bungalow" {
		t.Errorf("Address = %q", got)
	}
}

func TestAddressNeverEmpty(t *testing.T) {
	if got := Address(AddressParts{}, map[string]any{"UnparsedAddress": "   "}, ""); got != NoAddress {
		t.Errorf("Address = %q, want %q", got, NoAddress)
	}
}

func TestAddressCommaOnlyCandidateSkipped(t *testing.T) {
	// A candidate that truncates to nothing must not shadow later keys.
	raw := map[string]any{
		"UnparsedAddress": ", Irvine, CA",
		"StreetAddress":   "456 Oak Ave",
	}
	if got := Address(AddressParts{}, raw, ""); got != "456 Oak Ave" {
		t.Errorf("Address = %q, want %q", got, "456 Oak Ave")
	}
}
