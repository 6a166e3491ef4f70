package nodeconfig

import (
	"fmt"
	"os"

	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Options describes how a node config template is turned into the config the
// node is launched with.
type Options struct {
	Template              string
	Output                string
	DataDir               string
	BootstrappingMode     string
	ContinuousSyncingMode string
	MaxConcurrentRequests int
}

// Prepare loads the YAML template, points base.data_dir at DataDir, replaces the
// state_sync section with the requested modes, and writes the result to Output.
// The resulting document is returned for logging.
func Prepare(o Options) (map[string]any, error) {
	data, err := os.ReadFile(o.Template)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNodeConfigFailed, "NodeConfig", "cannot read template "+o.Template, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNodeConfigFailed, "NodeConfig", "cannot parse template "+o.Template, err)
	}
	if doc == nil {
		return nil, apperrors.New(apperrors.ErrCodeNodeConfigFailed, "NodeConfig", "template "+o.Template+" is empty", nil)
	}

	if o.DataDir != "" {
		section(doc, "base")["data_dir"] = o.DataDir
	}

	maxReqs := o.MaxConcurrentRequests
	if maxReqs <= 0 {
		maxReqs = consts.DefaultMaxConcurrentReqs
	}
	doc["state_sync"] = map[string]any{
		"state_sync_driver": map[string]any{
			"bootstrapping_mode":      o.BootstrappingMode,
			"continuous_syncing_mode": o.ContinuousSyncingMode,
		},
		"data_streaming_service": map[string]any{
			"max_concurrent_requests": maxReqs,
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNodeConfigFailed, "NodeConfig", "cannot encode node config", err)
	}
	if err := os.WriteFile(o.Output, out, 0o644); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNodeConfigFailed, "NodeConfig", "cannot write "+o.Output, err)
	}

	logger.Log.Info("Node config prepared", "template", o.Template, "output", o.Output,
		"bootstrapping_mode", o.BootstrappingMode, "continuous_syncing_mode", o.ContinuousSyncingMode)
	return doc, nil
}

// section returns doc[key] as a map, creating or replacing it if needed.
func section(doc map[string]any, key string) map[string]any {
	switch existing := doc[key].(type) {
	case map[string]any:
		return existing
	case map[any]any:
		converted := make(map[string]any, len(existing))
		for k, v := range existing {
			converted[fmt.Sprint(k)] = v
		}
		doc[key] = converted
		return converted
	default:
		m := map[string]any{}
		doc[key] = m
		return m
	}
}

// Personal.AI order the ending
