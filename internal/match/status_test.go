package match_test

import (
	"testing"

	"github.com/yourorg/match-api/internal/match"
)

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"new", "attached", "dismissed"} {
		got, err := match.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValues(t *testing.T) {
	for _, s := range []string{"", "NEW", "archived", "pending"} {
		if _, err := match.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

func TestIsTransitionAllowed_FromNew(t *testing.T) {
	if !match.IsTransitionAllowed(match.StatusNew, match.StatusAttached) {
		t.Error("new → attached should be allowed")
	}
	if !match.IsTransitionAllowed(match.StatusNew, match.StatusDismissed) {
		t.Error("new → dismissed should be allowed")
	}
}

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []match.Status{match.StatusAttached, match.StatusDismissed}
	targets := []match.Status{match.StatusNew, match.StatusAttached, match.StatusDismissed}
	for _, from := range terminals {
		for _, to := range targets {
			if match.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal)", from, to)
			}
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	for _, s := range []match.Status{match.StatusNew, match.StatusAttached, match.StatusDismissed} {
		if match.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if match.IsTerminal(match.StatusNew) {
		t.Error("new should not be terminal")
	}
	if !match.IsTerminal(match.StatusAttached) || !match.IsTerminal(match.StatusDismissed) {
		t.Error("attached and dismissed should be terminal")
	}
}
