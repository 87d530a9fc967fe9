package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNew_IsVersion7(t *testing.T) {
	id := New()
	parsed, err := googleuuid.Parse(id)
	if err != nil {
		t.Fatalf("New() produced invalid uuid %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("version = %d, want 7", parsed.Version())
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestParseAndIsValid(t *testing.T) {
	if IsValid("other") {
		t.Error("plain label should not be a valid uuid")
	}
	canonical, err := Parse("0190A0E2-7B5C-7CCC-8D5E-1A2B3C4D5E6F")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if canonical != "0190a0e2-7b5c-7ccc-8d5e-1a2b3c4d5e6f" {
		t.Errorf("canonical = %s", canonical)
	}
}
