// Package agent defines the unified agent record stored under acn:agents:
// and its string-only hash encoding.
package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/acnlabs/agentmigrate/internal/constants"
)

// TimeLayout is ISO-8601 with microseconds, the precision the ACN services parse.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// StatusOnline is the status every migrated agent starts with.
const StatusOnline = "online"

// ClaimStatus tells whether an agent has an owner.
type ClaimStatus string

const (
	Claimed   ClaimStatus = "claimed"
	Unclaimed ClaimStatus = "unclaimed"
)

// Hash field names of the unified record.
const (
	FieldAgentID          = "agent_id"
	FieldName             = "name"
	FieldStatus           = "status"
	FieldDescription      = "description"
	FieldSkills           = "skills"
	FieldSubnetIDs        = "subnet_ids"
	FieldMetadata         = "metadata"
	FieldRegisteredAt     = "registered_at"
	FieldPaymentMethods   = "payment_methods"
	FieldAcceptsPayment   = "accepts_payment"
	FieldClaimStatus      = "claim_status"
	FieldOwner            = "owner"
	FieldEndpoint         = "endpoint"
	FieldAPIKey           = "api_key"
	FieldVerificationCode = "verification_code"
	FieldReferrerID       = "referrer_id"
	FieldLastHeartbeat    = "last_heartbeat"
	FieldOwnerChangedAt   = "owner_changed_at"
)

// Metadata is the provenance envelope written with every migrated record.
type Metadata struct {
	Source       string `json:"source"`
	Mode         string `json:"mode"`
	MigratedFrom string `json:"migrated_from"`
	MigratedAt   string `json:"migrated_at"`
}

// Record is the unified agent. String fields listed as optional are omitted
// from the hash when empty; they are never written as "" or a null marker.
type Record struct {
	AgentID        string
	Name           string
	Status         string
	Description    string
	Skills         []string
	SubnetIDs      []string
	Metadata       Metadata
	RegisteredAt   string
	PaymentMethods []string
	AcceptsPayment bool
	ClaimStatus    ClaimStatus

	// optional
	Owner            string
	Endpoint         string
	APIKey           string
	VerificationCode string
	ReferrerID       string
	LastHeartbeat    string
	OwnerChangedAt   string
}

// Key returns the destination hash key for id.
func Key(id string) string { return constants.AgentPrefix + id }

// APIKeyIndexKey returns the destination string key mapping apiKey to an agent id.
func APIKeyIndexKey(apiKey string) string { return constants.APIKeyIndexPrefix + apiKey }

// OwnerIndexKey returns the destination set of agent ids owned by owner.
func OwnerIndexKey(owner string) string { return constants.OwnerIndexPrefix + owner }

// FormatTime renders t the way registered_at and migrated_at are stored.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// Hash encodes the record as a flat string map. Lists and metadata are JSON,
// booleans are "true"/"false" because the store only holds strings.
func (r Record) Hash() (map[string]string, error) {
	skills, err := jsonList(r.Skills)
	if err != nil {
		return nil, fmt.Errorf("encode skills: %w", err)
	}
	subnets, err := jsonList(r.SubnetIDs)
	if err != nil {
		return nil, fmt.Errorf("encode subnet_ids: %w", err)
	}
	payments, err := jsonList(r.PaymentMethods)
	if err != nil {
		return nil, fmt.Errorf("encode payment_methods: %w", err)
	}
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	h := map[string]string{
		FieldAgentID:        r.AgentID,
		FieldName:           r.Name,
		FieldStatus:         r.Status,
		FieldDescription:    r.Description,
		FieldSkills:         skills,
		FieldSubnetIDs:      subnets,
		FieldMetadata:       string(meta),
		FieldRegisteredAt:   r.RegisteredAt,
		FieldPaymentMethods: payments,
		FieldAcceptsPayment: boolString(r.AcceptsPayment),
		FieldClaimStatus:    string(r.ClaimStatus),
	}
	optional := map[string]string{
		FieldOwner:            r.Owner,
		FieldEndpoint:         r.Endpoint,
		FieldAPIKey:           r.APIKey,
		FieldVerificationCode: r.VerificationCode,
		FieldReferrerID:       r.ReferrerID,
		FieldLastHeartbeat:    r.LastHeartbeat,
		FieldOwnerChangedAt:   r.OwnerChangedAt,
	}
	for k, v := range optional {
		if v != "" {
			h[k] = v
		}
	}
	return h, nil
}

// jsonList encodes nil as [] rather than null.
func jsonList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
