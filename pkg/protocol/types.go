package protocol

import "time"

// Config is the root configuration of a nodesync session.
type Config struct {
	Node          NodeConfig          `mapstructure:"node"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Probe         ProbeConfig         `mapstructure:"probe"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// NodeConfig describes how the monitored node is launched.
type NodeConfig struct {
	Command               []string `mapstructure:"command"`
	Env                   []string `mapstructure:"env"`
	LogPath               string   `mapstructure:"log_path"`
	BootstrappingMode     string   `mapstructure:"bootstrapping_mode"`
	ContinuousSyncingMode string   `mapstructure:"continuous_syncing_mode"`

	// Optional node config preparation. Skipped when ConfigTemplate is empty.
	ConfigTemplate string `mapstructure:"config_template"`
	ConfigPath     string `mapstructure:"config_path"`
	DataDir        string `mapstructure:"data_dir"`

	TerminateGrace time.Duration `mapstructure:"terminate_grace"`
}

// SyncConfig holds the endpoints and timing policy of the monitor.
type SyncConfig struct {
	LocalEndpoint       string        `mapstructure:"local_endpoint"`
	ReferenceEndpoint   string        `mapstructure:"reference_endpoint"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	StartupPollInterval time.Duration `mapstructure:"startup_poll_interval"`
	StartupTimeout      time.Duration `mapstructure:"startup_timeout"` // 0 means StallTimeout
	StallTimeout        time.Duration `mapstructure:"stall_timeout"`
	Delta               uint64        `mapstructure:"delta"`
	LogTailLines        int           `mapstructure:"log_tail_lines"`
}

type ProbeConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ProgressQuery string        `mapstructure:"progress_query"`
}

type ObservabilityConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// EffectiveStartupTimeout returns the startup cap, falling back to the stall timeout.
func (s SyncConfig) EffectiveStartupTimeout() time.Duration {
	if s.StartupTimeout > 0 {
		return s.StartupTimeout
	}
	return s.StallTimeout
}

// Personal.AI order the ending
