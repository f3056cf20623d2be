package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
)

// Issue is one invariant violation found on a unified record.
type Issue struct {
	ID      string
	Problem string
}

// Report is the outcome of a verification pass.
type Report struct {
	Checked int
	Foreign int
	Issues  []Issue
}

// OK reports whether no issue was found.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

// Verifier checks unified records against their indexes. It never writes.
type Verifier struct {
	Store kv.Store
	Batch int64
	// All includes records not written by this migration.
	All bool
}

// Verify scans acn:agents: records, skipping the index keys that share the prefix.
func (v *Verifier) Verify(ctx context.Context) (*Report, error) {
	rep := &Report{}
	err := kv.Each(ctx, v.Store, constants.AgentPrefix, v.Batch, func(key string) error {
		if isIndexKey(key) {
			return nil
		}
		typ, err := v.Store.Type(ctx, key)
		if err != nil {
			return fmt.Errorf("type %s: %w", key, err)
		}
		if typ != "hash" {
			return nil
		}
		fields, err := v.Store.HGetAll(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if len(fields) == 0 {
			return nil
		}
		if !v.All && !IsOurs(fields) {
			rep.Foreign++
			return nil
		}
		id := strings.TrimPrefix(key, constants.AgentPrefix)
		rep.Checked++
		problems, err := v.check(ctx, id, fields)
		if err != nil {
			return err
		}
		for _, p := range problems {
			rep.Issues = append(rep.Issues, Issue{ID: id, Problem: p})
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	return rep, nil
}

func (v *Verifier) check(ctx context.Context, id string, fields map[string]string) ([]string, error) {
	var problems []string
	if got := fields[agent.FieldAgentID]; got != id {
		problems = append(problems, fmt.Sprintf("agent_id field %q does not match key", got))
	}

	owner := fields[agent.FieldOwner]
	switch agent.ClaimStatus(fields[agent.FieldClaimStatus]) {
	case agent.Claimed:
		if owner == "" {
			problems = append(problems, "claimed without owner")
		}
	case agent.Unclaimed:
		if owner != "" {
			problems = append(problems, "unclaimed but has owner")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown claim_status %q", fields[agent.FieldClaimStatus]))
	}

	subnets := gjson.Get(fields[agent.FieldSubnetIDs], `#(=="public")`)
	if !subnets.Exists() {
		problems = append(problems, "subnet_ids does not list public")
	}

	missing, err := MissingIndexes(ctx, v.Store, id, fields)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", id, err)
	}
	for _, idx := range missing {
		problems = append(problems, fmt.Sprintf("missing %s index", idx))
	}

	if key := fields[agent.FieldAPIKey]; key != "" {
		owner, err := v.Store.Get(ctx, agent.APIKeyIndexKey(key))
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("check %s: %w", id, err)
		}
		if err == nil && owner != id {
			problems = append(problems, fmt.Sprintf("api key index points at %q", owner))
		}
	}
	return problems, nil
}

func isIndexKey(key string) bool {
	return key == constants.UnclaimedSet ||
		strings.HasPrefix(key, constants.APIKeyIndexPrefix) ||
		strings.HasPrefix(key, constants.OwnerIndexPrefix)
}

// RenderReport writes a verification report.
func RenderReport(w io.Writer, rep *Report) error {
	p := &printer{w: w}
	p.printf("Checked %d agents", rep.Checked)
	if rep.Foreign > 0 {
		p.printf(" (%d not written by this migration ignored)", rep.Foreign)
	}
	p.printf("\n")
	for _, is := range rep.Issues {
		p.printf("   %s: %s\n", is.ID, is.Problem)
	}
	if rep.OK() {
		p.printf("No issues found\n")
	} else {
		p.printf("%d issues found\n", len(rep.Issues))
	}
	return p.err
}
