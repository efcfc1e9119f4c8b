/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"slices"
	"sync"

	"pgedge-nla/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload
// capability. Only log_level and the auth token list take effect on
// reload; other changes are reported as needing a restart.
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file. On failure the previous
// configuration stays in place.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()

	if rc.path == "" {
		rc.mu.Unlock()
		return fmt.Errorf("no configuration file path set")
	}

	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		rc.mu.Unlock()
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	for _, setting := range RestartRequired(rc.config, newConfig) {
		logging.Warn("config_change_requires_restart", "setting", setting)
	}

	rc.config = newConfig
	callbacks := slices.Clone(rc.onReload)
	rc.mu.Unlock()

	for _, callback := range callbacks {
		callback(newConfig)
	}

	logging.Info("config_reloaded", "path", rc.path)
	return nil
}

// RestartRequired lists the settings that differ between old and new and
// cannot be applied to a running server.
func RestartRequired(old, updated *Config) []string {
	var changed []string
	check := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	check("http.address", old.HTTP.Address != updated.HTTP.Address)
	check("http.cors_origins", !slices.Equal(old.HTTP.CORSOrigins, updated.HTTP.CORSOrigins))
	check("http.tls", old.HTTP.TLS != updated.HTTP.TLS)
	check("http.auth.enabled", old.HTTP.Auth.Enabled != updated.HTTP.Auth.Enabled)
	check("database", old.Database != updated.Database)
	check("llm", old.LLM != updated.LLM)
	check("embedding", old.Embedding != updated.Embedding)
	check("schema_index", old.SchemaIndex != updated.SchemaIndex)
	check("history", old.History != updated.History)

	return changed
}

// OnReload registers a callback to be called with the new configuration
// after a successful reload
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
