package migration

import (
	"errors"
	"fmt"
	"time"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/legacy"
	"github.com/acnlabs/agentmigrate/internal/util"
)

// ErrMissingID marks a legacy record without an agent_id field.
var ErrMissingID = errors.New("legacy record has no agent_id")

// ErrIDMismatch marks a legacy record whose agent_id differs from its key.
var ErrIDMismatch = errors.New("legacy agent_id does not match key")

// Legacy defaults applied when a field is absent.
const (
	DefaultName   = "Unknown Agent"
	DefaultSource = "unknown"
	DefaultMode   = "pull"
)

// Transform maps a legacy record to its unified shape. apiKey is the key
// resolved from the legacy API-key index, or "" when the agent has none.
// now supplies the migration timestamp and the registration fallback.
func Transform(rec legacy.Record, apiKey string, now time.Time) (agent.Record, error) {
	id, ok := rec.AgentID.Get()
	if !ok {
		return agent.Record{}, ErrMissingID
	}
	if rec.Key != "" && id != rec.Key {
		return agent.Record{}, fmt.Errorf("%w: field %q, key %q", ErrIDMismatch, id, rec.Key)
	}

	stamp := agent.FormatTime(now.UTC())
	out := agent.Record{
		AgentID:     id,
		Name:        rec.Name.Or(DefaultName),
		Status:      agent.StatusOnline,
		Description: rec.Description.Or(""),
		Skills:      util.SplitList(rec.Skills.Or("")),
		SubnetIDs:   []string{constants.PublicSubnetID},
		Metadata: agent.Metadata{
			Source:       rec.Source.Or(DefaultSource),
			Mode:         rec.Mode.Or(DefaultMode),
			MigratedFrom: constants.MigratedFromTag,
			MigratedAt:   stamp,
		},
		RegisteredAt:   registeredAt(rec, stamp),
		PaymentMethods: []string{},
		AcceptsPayment: false,
		ClaimStatus:    agent.Unclaimed,
		APIKey:         apiKey,
	}

	if owner, ok := rec.ClaimedBy.NonEmpty(); ok {
		out.ClaimStatus = agent.Claimed
		out.Owner = owner
	}
	if v, ok := rec.Endpoint.NonEmpty(); ok {
		out.Endpoint = v
	}
	if v, ok := rec.VerificationCode.NonEmpty(); ok {
		out.VerificationCode = v
	}
	if v, ok := rec.Referrer.NonEmpty(); ok {
		out.ReferrerID = v
	}
	if v, ok := rec.LastHeartbeat.NonEmpty(); ok {
		out.LastHeartbeat = v
	}
	if v, ok := rec.ClaimedAt.NonEmpty(); ok {
		out.OwnerChangedAt = v
	}
	return out, nil
}

// registeredAt prefers created_at, then joined_at, then the migration time.
func registeredAt(rec legacy.Record, fallback string) string {
	if v, ok := rec.CreatedAt.NonEmpty(); ok {
		return v
	}
	if v, ok := rec.JoinedAt.NonEmpty(); ok {
		return v
	}
	return fallback
}
