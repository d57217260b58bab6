package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/paths"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Lists replace rather than append so
// a project file can narrow the user's required set.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Permissions.PollInterval != 0 {
		base.Permissions.PollInterval = override.Permissions.PollInterval
	}
	if fieldSet(raw, "permissions", "required") {
		base.Permissions.Required = append([]string(nil), override.Permissions.Required...)
	}
	if fieldSet(raw, "permissions", "automation_targets") {
		base.Permissions.AutomationTargets = append([]string(nil), override.Permissions.AutomationTargets...)
	}

	if fieldSet(raw, "onboarding", "skip_sidecar_check") {
		base.Onboarding.SkipSidecarCheck = override.Onboarding.SkipSidecarCheck
	}

	if v := strings.TrimSpace(override.Storage.Path); v != "" {
		base.Storage.Path = paths.ExpandHome(v)
	}

	if v := strings.TrimSpace(override.Logging.Dir); v != "" {
		base.Logging.Dir = paths.ExpandHome(v)
	}
	if v := strings.TrimSpace(override.Logging.Level); v != "" {
		base.Logging.Level = v
	}

	if v := strings.TrimSpace(override.Server.ListenAddr); v != "" {
		base.Server.ListenAddr = v
	}

	if v := strings.TrimSpace(override.Transcriber.URL); v != "" {
		base.Transcriber.URL = v
	}
	if override.Transcriber.Timeout != 0 {
		base.Transcriber.Timeout = override.Transcriber.Timeout
	}
}

// fieldSet reports whether the YAML document contains the nested key,
// distinguishing an explicit zero value from an absent one.
func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := raw
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// Marshal renders cfg as YAML, as written by `flux config`.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
