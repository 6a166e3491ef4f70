package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/protocol"
)

// FlagKeys maps CLI flag names to configuration keys.
var FlagKeys = map[string]string{
	"local-endpoint":          "sync.local_endpoint",
	"reference-endpoint":      "sync.reference_endpoint",
	"poll-interval":           "sync.poll_interval",
	"startup-poll-interval":   "sync.startup_poll_interval",
	"startup-timeout":         "sync.startup_timeout",
	"stall-timeout":           "sync.stall_timeout",
	"delta":                   "sync.delta",
	"log-tail-lines":          "sync.log_tail_lines",
	"bootstrapping-mode":      "node.bootstrapping_mode",
	"continuous-syncing-mode": "node.continuous_syncing_mode",
	"node-log":                "node.log_path",
	"node-config-template":    "node.config_template",
	"node-config":             "node.config_path",
	"data-dir":                "node.data_dir",
	"probe-timeout":           "probe.timeout",
	"progress-query":          "probe.progress_query",
	"log-level":               "observability.log_level",
	"log-format":              "observability.log_format",
	"metrics-addr":            "observability.metrics_addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.command", []string{})
	v.SetDefault("node.env", []string{})
	v.SetDefault("node.log_path", consts.DefaultNodeLogPath)
	v.SetDefault("node.bootstrapping_mode", consts.BootstrapExecuteFromGenesis)
	v.SetDefault("node.continuous_syncing_mode", consts.ContinuousExecuteTransactions)
	v.SetDefault("node.config_template", "")
	v.SetDefault("node.config_path", "")
	v.SetDefault("node.data_dir", "")
	v.SetDefault("node.terminate_grace", consts.DefaultTerminateGrace)

	v.SetDefault("sync.local_endpoint", consts.DefaultLocalEndpoint)
	v.SetDefault("sync.reference_endpoint", "")
	v.SetDefault("sync.poll_interval", consts.DefaultPollInterval)
	v.SetDefault("sync.startup_poll_interval", consts.DefaultStartupPollInterval)
	v.SetDefault("sync.startup_timeout", 0)
	v.SetDefault("sync.stall_timeout", consts.DefaultStallTimeout)
	v.SetDefault("sync.delta", consts.DefaultSyncDelta)
	v.SetDefault("sync.log_tail_lines", consts.DefaultLogTailLines)

	v.SetDefault("probe.timeout", consts.DefaultProbeTimeout)
	v.SetDefault("probe.progress_query", consts.DefaultProgressQuery)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.metrics_addr", "")
}

// NewViper builds a viper instance layered as defaults < file < NODESYNC_* env
// < explicitly set flags. path may be empty.
func NewViper(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(strings.ToLower(consts.EnvPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "Config", "cannot read config file "+path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "Config", "cannot bind flag --"+name, err)
				}
			}
		}
	}
	return v, nil
}

// Load reads the layered configuration into a protocol.Config.
func Load(path string, flags *pflag.FlagSet) (*protocol.Config, error) {
	v, err := NewViper(path, flags)
	if err != nil {
		return nil, err
	}
	var cfg protocol.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "Config", "cannot decode configuration", err)
	}
	return &cfg, nil
}

// Requirement selects which parts of the configuration a command needs.
type Requirement int

const (
	NeedReference Requirement = 1 << iota
	NeedLocal
	NeedNode
)

// Validate reports every problem in cfg relevant to req at once.
func Validate(cfg *protocol.Config, req Requirement) error {
	var result *multierror.Error

	if req&NeedReference != 0 {
		if err := checkURL("sync.reference_endpoint", cfg.Sync.ReferenceEndpoint); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if req&NeedLocal != 0 {
		if err := checkURL("sync.local_endpoint", cfg.Sync.LocalEndpoint); err != nil {
			result = multierror.Append(result, err)
		}
		if cfg.Sync.PollInterval <= 0 {
			result = multierror.Append(result, fmt.Errorf("sync.poll_interval must be positive"))
		}
		if cfg.Sync.StartupPollInterval <= 0 {
			result = multierror.Append(result, fmt.Errorf("sync.startup_poll_interval must be positive"))
		}
		if cfg.Sync.StallTimeout <= 0 {
			result = multierror.Append(result, fmt.Errorf("sync.stall_timeout must be positive"))
		}
		if cfg.Sync.StartupTimeout < 0 {
			result = multierror.Append(result, fmt.Errorf("sync.startup_timeout must not be negative"))
		}
		if cfg.Sync.LogTailLines < 0 {
			result = multierror.Append(result, fmt.Errorf("sync.log_tail_lines must not be negative"))
		}
	}
	if req&NeedNode != 0 {
		if len(cfg.Node.Command) == 0 {
			result = multierror.Append(result, fmt.Errorf("node.command is required"))
		}
		if cfg.Node.ConfigTemplate != "" && cfg.Node.ConfigPath == "" {
			result = multierror.Append(result, fmt.Errorf("node.config_path is required when node.config_template is set"))
		}
	}
	if cfg.Probe.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("probe.timeout must be positive"))
	}
	if strings.TrimSpace(cfg.Probe.ProgressQuery) == "" {
		result = multierror.Append(result, fmt.Errorf("probe.progress_query is required"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "Config", "invalid configuration", err)
	}
	return nil
}

func checkURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}

// Personal.AI order the ending
