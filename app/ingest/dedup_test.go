package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDedupKey_WithExternalID(t *testing.T) {
	call := &Call{Title: "Ayudas al cine", ExternalID: "834921"}

	key := BuildDedupKey("bdns", call)
	if key != "bdns:834921" {
		t.Errorf("Expected 'bdns:834921', got %q", key)
	}
}

func TestBuildDedupKey_SameExternalIDAcrossRepresentations(t *testing.T) {
	// The same logical entry arriving as an HTML row and as a JSON export
	// must collapse onto one key as long as both carry the external ID.
	fromHTML := &Call{Title: "Ayudas al cine y al audiovisual", ExternalID: "900100"}
	fromJSON := &Call{Title: "AYUDAS AL CINE Y AL AUDIOVISUAL (texto completo)", ExternalID: "900100"}

	if BuildDedupKey("bdns", fromHTML) != BuildDedupKey("bdns", fromJSON) {
		t.Error("Expected identical keys for identical (source, external_id)")
	}
}

func TestBuildDedupKey_FallbackIsStable(t *testing.T) {
	deadline := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	call := func() *Call {
		return &Call{
			Title:    "Premio de fotografía urbana",
			Issuer:   "Ayuntamiento de Vigo",
			Deadline: &deadline,
		}
	}

	first := BuildDedupKey("xunta", call())
	second := BuildDedupKey("xunta", call())

	if first != second {
		t.Errorf("Fallback key not stable across runs: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "xunta:generated-") {
		t.Errorf("Expected generated-key prefix, got %q", first)
	}
}

func TestBuildDedupKey_FallbackDiffersByContent(t *testing.T) {
	a := &Call{Title: "Premio de fotografía", Issuer: "Ayuntamiento de Vigo"}
	b := &Call{Title: "Premio de pintura", Issuer: "Ayuntamiento de Vigo"}

	if BuildDedupKey("xunta", a) == BuildDedupKey("xunta", b) {
		t.Error("Different records should not share a generated key")
	}
}
