package legacy

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	rec, err := Decode("onboarded_agent:ext-1", map[string]string{
		"agent_id":   "ext-1",
		"name":       "Writer",
		"endpoint":   "",
		"claimed_by": "user-42",
		"unknown":    "ignored",
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Key != "ext-1" {
		t.Fatalf("Key = %q", rec.Key)
	}
	if v, ok := rec.AgentID.Get(); !ok || v != "ext-1" {
		t.Fatalf("AgentID = %q,%v", v, ok)
	}
	if !rec.Endpoint.Present() {
		t.Fatal("empty endpoint should still be present")
	}
	if _, ok := rec.Endpoint.NonEmpty(); ok {
		t.Fatal("empty endpoint should not be NonEmpty")
	}
	if rec.Referrer.Present() {
		t.Fatal("missing referrer should be absent")
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := Decode("onboarded_agent:x", map[string]string{}); !errors.Is(err, ErrEmptyRecord) {
		t.Fatalf("expected ErrEmptyRecord, got %v", err)
	}
}

func TestOptional(t *testing.T) {
	tests := []struct {
		name      string
		opt       Optional
		or        string
		nonEmpty  bool
		nonEmptyV string
	}{
		{"absent", None, "def", false, ""},
		{"empty", Some(""), "", false, ""},
		{"blank", Some("  "), "  ", true, "  "},
		{"value", Some("x"), "x", true, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opt.Or("def"); got != tt.or {
				t.Errorf("Or = %q, want %q", got, tt.or)
			}
			v, ok := tt.opt.NonEmpty()
			if ok != tt.nonEmpty || v != tt.nonEmptyV {
				t.Errorf("NonEmpty = %q,%v", v, ok)
			}
		})
	}
}

func TestKeyHelpers(t *testing.T) {
	if KeyFor("a1") != "onboarded_agent:a1" {
		t.Fatalf("KeyFor = %q", KeyFor("a1"))
	}
	if IDFromKey("onboarded_agent:a1") != "a1" {
		t.Fatalf("IDFromKey = %q", IDFromKey("onboarded_agent:a1"))
	}
}
