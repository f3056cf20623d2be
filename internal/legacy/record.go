// Package legacy decodes agent hashes written by the onboarding service
// under the onboarded_agent: prefix.
package legacy

import (
	"errors"
	"strings"

	"github.com/acnlabs/agentmigrate/internal/constants"
)

// ErrEmptyRecord is returned when the hash has no fields, usually because the
// key was deleted between the scan and the read.
var ErrEmptyRecord = errors.New("legacy record is empty")

// Legacy hash field names.
const (
	FieldAgentID          = "agent_id"
	FieldName             = "name"
	FieldDescription      = "description"
	FieldSkills           = "skills"
	FieldMode             = "mode"
	FieldEndpoint         = "endpoint"
	FieldSource           = "source"
	FieldReferrer         = "referrer"
	FieldStatus           = "status"
	FieldVerificationCode = "verification_code"
	FieldCreatedAt        = "created_at"
	FieldJoinedAt         = "joined_at"
	FieldLastHeartbeat    = "last_heartbeat"
	FieldClaimedBy        = "claimed_by"
	FieldClaimedAt        = "claimed_at"
)

// Optional is a hash field that may be missing.
type Optional struct {
	value string
	ok    bool
}

// Some returns a present Optional holding v.
func Some(v string) Optional { return Optional{value: v, ok: true} }

// None is the absent value.
var None = Optional{}

// Get returns the value and whether the field was present.
func (o Optional) Get() (string, bool) { return o.value, o.ok }

// Present reports whether the field exists, even if empty.
func (o Optional) Present() bool { return o.ok }

// NonEmpty returns the value when the field is present and not the empty
// string. Whitespace is a value.
func (o Optional) NonEmpty() (string, bool) {
	if !o.ok || o.value == "" {
		return "", false
	}
	return o.value, true
}

// Or returns the value when present (even if empty), otherwise def.
func (o Optional) Or(def string) string {
	if o.ok {
		return o.value
	}
	return def
}

// Record is one onboarded agent. Every attribute is optional because the
// store enforces no schema; Key is the identifier taken from the key suffix.
type Record struct {
	Key string

	AgentID          Optional
	Name             Optional
	Description      Optional
	Skills           Optional
	Mode             Optional
	Endpoint         Optional
	Source           Optional
	Referrer         Optional
	Status           Optional
	VerificationCode Optional
	CreatedAt        Optional
	JoinedAt         Optional
	LastHeartbeat    Optional
	ClaimedBy        Optional
	ClaimedAt        Optional
}

// KeyFor returns the legacy hash key for id.
func KeyFor(id string) string { return constants.LegacyAgentPrefix + id }

// IDFromKey strips the legacy prefix from a scanned key.
func IDFromKey(key string) string { return strings.TrimPrefix(key, constants.LegacyAgentPrefix) }

// Decode builds a Record from the raw hash read at key. Unknown fields are
// ignored.
func Decode(key string, fields map[string]string) (Record, error) {
	if len(fields) == 0 {
		return Record{}, ErrEmptyRecord
	}
	get := func(name string) Optional {
		if v, ok := fields[name]; ok {
			return Some(v)
		}
		return None
	}
	return Record{
		Key:              IDFromKey(key),
		AgentID:          get(FieldAgentID),
		Name:             get(FieldName),
		Description:      get(FieldDescription),
		Skills:           get(FieldSkills),
		Mode:             get(FieldMode),
		Endpoint:         get(FieldEndpoint),
		Source:           get(FieldSource),
		Referrer:         get(FieldReferrer),
		Status:           get(FieldStatus),
		VerificationCode: get(FieldVerificationCode),
		CreatedAt:        get(FieldCreatedAt),
		JoinedAt:         get(FieldJoinedAt),
		LastHeartbeat:    get(FieldLastHeartbeat),
		ClaimedBy:        get(FieldClaimedBy),
		ClaimedAt:        get(FieldClaimedAt),
	}, nil
}
