package constants

import "time"

// Legacy keyspace written by the onboarding service.
const (
	LegacyAgentPrefix  = "onboarded_agent:"
	LegacyAPIKeyPrefix = "onboarded_api_key:"
	// LegacyPointsPrefix is not migrated; listed so nothing sweeps it by accident.
	LegacyPointsPrefix = "onboarded_points:"
)

// Unified keyspace.
const (
	AgentPrefix        = "acn:agents:"
	APIKeyIndexPrefix  = "acn:agents:by_api_key:"
	OwnerIndexPrefix   = "acn:agents:by_owner:"
	UnclaimedSet       = "acn:agents:unclaimed"
	PublicSubnetAgents = "acn:subnets:public:agents"
	PublicSubnetID     = "public"
)

// Migration bookkeeping.
const (
	LockKey          = "acn:migrations:agents:lock"
	MigratedFromTag  = "onboarded_agent"
	DefaultRedisURL  = "redis://localhost:6379"
	DefaultBatchSize = 100
	DefaultLockTTL   = 10 * time.Minute
)

// Journal defaults
const (
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	DefaultJournalFileName = "agentmigrate.db"
	DefaultRunsTable       = "migration_runs"
	DefaultRunErrorsTable  = "migration_run_errors"

	DefaultPostgresMaxConnections = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultMaxConnLifetime        = 5 * time.Minute
)
