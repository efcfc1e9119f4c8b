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
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Preferences holds CLI display settings that the chat command can change
// at runtime. They live apart from the main configuration file.
type Preferences struct {
	RenderMarkdown bool `yaml:"render_markdown"`
	ShowSQL        bool `yaml:"show_sql"`
	MaxRows        int  `yaml:"max_rows"`
}

// DefaultPreferences returns the preferences used when no file exists
func DefaultPreferences() *Preferences {
	return &Preferences{
		RenderMarkdown: true,
		ShowSQL:        true,
		MaxRows:        25,
	}
}

// LoadPreferences loads user preferences from a YAML file
func LoadPreferences(path string) (*Preferences, error) {
	prefs := DefaultPreferences()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences file: %w", err)
	}

	if err := yaml.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preferences file: %w", err)
	}
	if prefs.MaxRows <= 0 {
		prefs.MaxRows = DefaultPreferences().MaxRows
	}

	return prefs, nil
}

// SavePreferences saves user preferences to a YAML file
func SavePreferences(path string, prefs *Preferences) error {
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preferences file: %w", err)
	}

	return nil
}

// GetDefaultPreferencesPath returns ~/.pgedge-nla-prefs.yaml, or a file in
// the working directory when the home directory is unknown.
func GetDefaultPreferencesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pgedge-nla-prefs.yaml"
	}
	return filepath.Join(home, ".pgedge-nla-prefs.yaml")
}
