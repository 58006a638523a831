package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/log"
)

// PluginType is the type string patu is registered under in a config list.
const PluginType = "patu"

// ParseNetworkConfig decodes and validates a network configuration.
//
// A configuration list is accepted too: the entry whose type is "patu" is
// selected (or the first entry when none matches) and the list's cniVersion
// and name are injected into it.
func ParseNetworkConfig(data []byte) (*NetworkConfig, error) {
	var probe struct {
		Plugins json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, cnierrors.NewConfigError("Invalid Network Config", err)
	}

	if len(probe.Plugins) > 0 {
		list, err := ParseConfigList(data)
		if err != nil {
			return nil, err
		}
		if data, err = list.PluginDocument(PluginType); err != nil {
			return nil, cnierrors.NewConfigError("Invalid Network Config", err)
		}
	}

	var conf NetworkConfig
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, cnierrors.NewConfigError("Invalid Network Config", err)
	}
	conf.raw = append([]byte(nil), data...)

	if err := conf.Validate(); err != nil {
		return nil, cnierrors.NewConfigError("Invalid Network Config", err)
	}

	return &conf, nil
}

// LoadNetworkConfig reads a network configuration (or list) from a file.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, cnierrors.NewIOError("Unable to read network config", err)
	}
	return ParseNetworkConfig(data)
}

// ParseConfigList decodes and validates a network configuration list.
func ParseConfigList(data []byte) (*ConfigList, error) {
	var list ConfigList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, cnierrors.NewConfigError("Invalid Network Config List", err)
	}
	if err := list.Validate(); err != nil {
		return nil, cnierrors.NewConfigError("Invalid Network Config List", err)
	}
	return &list, nil
}

// PluginDocument returns the single-plugin document for the first entry of
// type pluginType, falling back to the first entry. cniVersion and name are
// copied from the list.
func (l *ConfigList) PluginDocument(pluginType string) ([]byte, error) {
	if len(l.Plugins) == 0 {
		return nil, errors.New("configuration list has no plugins")
	}

	entry := l.Plugins[0]
	for _, p := range l.Plugins {
		if p.Type == pluginType {
			entry = p
			break
		}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(entry.Raw, &doc); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", entry.Type, err)
	}

	version, _ := json.Marshal(l.CNIVersion)
	name, _ := json.Marshal(l.Name)
	doc["cniVersion"] = version
	doc["name"] = name
	if l.DisableCheck {
		doc["disableCheck"] = json.RawMessage("true")
	}

	return json.Marshal(doc)
}

// Raw returns the document as it was received.
func (c *NetworkConfig) Raw() []byte {
	if len(c.raw) > 0 {
		return c.raw
	}
	data, _ := json.Marshal(c)
	return data
}

// EffectiveMTU returns the configured veth MTU or the default.
func (c *NetworkConfig) EffectiveMTU() int {
	if c.MTU == 0 {
		return DefaultMTU
	}
	return c.MTU
}

// EffectiveForwardRule returns the configured forward rule template or the default.
func (c *NetworkConfig) EffectiveForwardRule() string {
	if c.ForwardRule == "" {
		return DefaultForwardRule
	}
	return c.ForwardRule
}

// LoadDataplaneConfig loads the daemon configuration. A missing file yields the defaults.
func LoadDataplaneConfig(configPath string) (*DataplaneConfig, error) {
	cfg := DefaultDataplaneConfig()
	if configPath == "" {
		return cfg, nil
	}

	configFile := filepath.Clean(configPath)
	content, err := os.ReadFile(configFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Infof("Dataplane configuration %s not found, using defaults", configFile)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := toml.Unmarshal(content, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf("%s", derr.String())
			row, col := derr.Position()
			log.Errorf("Error at line %d, column %d", row, col)
			return nil, fmt.Errorf("failed to parse config file")
		}
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval = Duration{DefaultPollInterval}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debugf("Dataplane configuration file path: %s", configFile)
	return cfg, nil
}
