package consts

import "time"

// SessionPhase defines the lifecycle phase of one sync session.
type SessionPhase string

const (
	PhasePending   SessionPhase = "PENDING"
	PhaseTargeting SessionPhase = "TARGETING" // Reference probe & target computation
	PhaseStarting  SessionPhase = "STARTING"  // Spawned, waiting for the status endpoint
	PhaseSyncing   SessionPhase = "SYNCING"   // Polling progress
	PhaseSucceeded SessionPhase = "SUCCEEDED"
	PhaseFailed    SessionPhase = "FAILED"
)

// Phases lists every session phase in lifecycle order.
var Phases = []SessionPhase{
	PhasePending, PhaseTargeting, PhaseStarting, PhaseSyncing, PhaseSucceeded, PhaseFailed,
}

// Raw bootstrapping mode strings understood by the node.
const (
	BootstrapDownloadLatestStates = "DownloadLatestStates"
	BootstrapExecuteFromGenesis   = "ExecuteTransactionsFromGenesis"
	ContinuousExecuteTransactions = "ExecuteTransactions"
)

// Defaults
const (
	DefaultLocalEndpoint       = "http://127.0.0.1:8080/v1"
	DefaultProgressQuery       = ".ledger_version"
	DefaultPollInterval        = 10 * time.Second
	DefaultStartupPollInterval = 5 * time.Second
	DefaultStallTimeout        = 1800 * time.Second
	DefaultProbeTimeout        = 10 * time.Second
	DefaultTerminateGrace      = 10 * time.Second
	DefaultSyncDelta           = 20000
	DefaultLogTailLines        = 10
	DefaultNodeLogPath         = "node.log"
	DefaultMaxConcurrentReqs   = 10

	EnvPrefix = "NODESYNC"
)

// Personal.AI order the ending
