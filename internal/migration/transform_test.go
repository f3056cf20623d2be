package migration

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/legacy"
)

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 123456000, time.UTC)

func decodeLegacy(t *testing.T, id string, fields map[string]string) legacy.Record {
	t.Helper()
	rec, err := legacy.Decode(legacy.KeyFor(id), fields)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec
}

func TestTransform_Skills(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		want   []string
	}{
		{"comma list", map[string]string{"agent_id": "a", "skills": "writing, analysis,coding"}, []string{"writing", "analysis", "coding"}},
		{"empty string", map[string]string{"agent_id": "a", "skills": ""}, []string{}},
		{"absent", map[string]string{"agent_id": "a"}, []string{}},
		{"blank tokens", map[string]string{"agent_id": "a", "skills": " , ,x,"}, []string{"x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Transform(decodeLegacy(t, "a", tc.fields), "", fixedNow)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			if !reflect.DeepEqual(out.Skills, tc.want) {
				t.Fatalf("skills = %#v, want %#v", out.Skills, tc.want)
			}
		})
	}
}

func TestTransform_ClaimDerivation(t *testing.T) {
	claimed, err := Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "a", "claimed_by": "user-42", "claimed_at": "2026-01-01T00:00:00"}), "", fixedNow)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if claimed.ClaimStatus != agent.Claimed || claimed.Owner != "user-42" {
		t.Fatalf("claimed: status=%q owner=%q", claimed.ClaimStatus, claimed.Owner)
	}
	if claimed.OwnerChangedAt != "2026-01-01T00:00:00" {
		t.Fatalf("owner_changed_at = %q", claimed.OwnerChangedAt)
	}

	for _, fields := range []map[string]string{
		{"agent_id": "a"},
		{"agent_id": "a", "claimed_by": ""},
	} {
		out, err := Transform(decodeLegacy(t, "a", fields), "", fixedNow)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}
		if out.ClaimStatus != agent.Unclaimed || out.Owner != "" {
			t.Fatalf("unclaimed: status=%q owner=%q", out.ClaimStatus, out.Owner)
		}
	}

	// A blank claimed_by is still a value.
	blank, err := Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "a", "claimed_by": " "}), "", fixedNow)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if blank.ClaimStatus != agent.Claimed || blank.Owner != " " {
		t.Fatalf("blank claimed_by: status=%q owner=%q", blank.ClaimStatus, blank.Owner)
	}
}

func TestTransform_Defaults(t *testing.T) {
	out, err := Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "a", "status": "active"}), "", fixedNow)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Name != DefaultName || out.Description != "" || out.Status != agent.StatusOnline {
		t.Fatalf("unexpected defaults: %+v", out)
	}
	want := agent.Metadata{Source: "unknown", Mode: "pull", MigratedFrom: "onboarded_agent", MigratedAt: "2026-05-06T07:08:09.123456Z"}
	if out.Metadata != want {
		t.Fatalf("metadata = %+v, want %+v", out.Metadata, want)
	}
	if out.RegisteredAt != want.MigratedAt {
		t.Fatalf("registered_at fallback = %q", out.RegisteredAt)
	}
	if !reflect.DeepEqual(out.SubnetIDs, []string{"public"}) {
		t.Fatalf("subnet_ids = %v", out.SubnetIDs)
	}
}

func TestTransform_RegisteredAtPreference(t *testing.T) {
	out, _ := Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "a", "created_at": "c", "joined_at": "j"}), "", fixedNow)
	if out.RegisteredAt != "c" {
		t.Fatalf("want created_at, got %q", out.RegisteredAt)
	}
	out, _ = Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "a", "created_at": "", "joined_at": "j"}), "", fixedNow)
	if out.RegisteredAt != "j" {
		t.Fatalf("want joined_at, got %q", out.RegisteredAt)
	}
}

func TestTransform_OptionalFields(t *testing.T) {
	out, err := Transform(decodeLegacy(t, "a", map[string]string{
		"agent_id":          "a",
		"endpoint":          "",
		"verification_code": "vc-1",
		"referrer":          "ref-9",
		"last_heartbeat":    "2026-02-02T00:00:00",
	}), "key-1", fixedNow)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	h, err := out.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, ok := h["endpoint"]; ok {
		t.Fatalf("empty endpoint must not be written")
	}
	for k, v := range map[string]string{"api_key": "key-1", "verification_code": "vc-1", "referrer_id": "ref-9", "last_heartbeat": "2026-02-02T00:00:00"} {
		if h[k] != v {
			t.Errorf("%s = %q, want %q", k, h[k], v)
		}
	}
	if _, ok := h["referrer"]; ok {
		t.Errorf("legacy referrer field leaked into unified record")
	}
}

func TestTransform_WhitespaceValuesArePresent(t *testing.T) {
	out, err := Transform(decodeLegacy(t, "a", map[string]string{
		"agent_id":   "a",
		"endpoint":   " ",
		"created_at": " ",
		"joined_at":  "J",
	}), "", fixedNow)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Endpoint != " " {
		t.Fatalf("endpoint = %q, want a single space", out.Endpoint)
	}
	if out.RegisteredAt != " " {
		t.Fatalf("registered_at = %q, want created_at to win", out.RegisteredAt)
	}
	h, err := out.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if v, ok := h["endpoint"]; !ok || v != " " {
		t.Fatalf("endpoint not written: %q %v", v, ok)
	}
}

func TestTransform_MissingID(t *testing.T) {
	_, err := Transform(decodeLegacy(t, "a", map[string]string{"name": "x"}), "", fixedNow)
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("want ErrMissingID, got %v", err)
	}
}

func TestTransform_IDMismatch(t *testing.T) {
	_, err := Transform(decodeLegacy(t, "a", map[string]string{"agent_id": "b"}), "", fixedNow)
	if !errors.Is(err, ErrIDMismatch) {
		t.Fatalf("want ErrIDMismatch, got %v", err)
	}
}
