package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models planup.yml.
type Config struct {
	Project struct {
		ID  string `yaml:"id"`
		Key string `yaml:"key"`
	} `yaml:"project"`
	Workflow struct {
		Name        string             `yaml:"name"`
		Statuses    []string           `yaml:"statuses"`
		Transitions []TransitionConfig `yaml:"transitions"`
	} `yaml:"workflow"`
	TimeTracking struct {
		Categories []string `yaml:"categories"`
	} `yaml:"timetracking"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type TransitionConfig struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Label string `yaml:"label"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pu workflow import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Project.Key == "" {
		return fmt.Errorf("config.project.key is required")
	}
	if len(c.Workflow.Statuses) == 0 {
		return fmt.Errorf("config.workflow.statuses must list at least one status")
	}
	seen := map[string]bool{}
	for _, s := range c.Workflow.Statuses {
		if s == "" {
			return fmt.Errorf("config.workflow.statuses contains empty status")
		}
		if seen[s] {
			return fmt.Errorf("config.workflow.statuses contains duplicate status %q", s)
		}
		seen[s] = true
	}
	for _, tr := range c.Workflow.Transitions {
		if !seen[tr.From] {
			return fmt.Errorf("transition from unknown status %q", tr.From)
		}
		if !seen[tr.To] {
			return fmt.Errorf("transition to unknown status %q", tr.To)
		}
	}
	for _, cat := range c.TimeTracking.Categories {
		if cat == "" {
			return fmt.Errorf("config.timetracking.categories contains empty category")
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// TimeCategoryAllowed reports whether a time log category is in the
// catalog. An empty catalog allows any category.
func (c *Config) TimeCategoryAllowed(category string) bool {
	if category == "" || len(c.TimeTracking.Categories) == 0 {
		return true
	}
	for _, cat := range c.TimeTracking.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planup.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID, projectKey string) string {
	return fmt.Sprintf(defaultTemplate, projectID, projectKey)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID, projectKey string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	cfg.Project.Key = projectKey
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(projectID, projectKey))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s
  key: %s

workflow:
  name: Default board
  statuses: ["To Do", "In Progress", "In Review", "Done"]
  transitions:
    - { from: "To Do", to: "In Progress", label: "Start Work" }
    - { from: "In Progress", to: "In Review", label: "Submit for Review" }
    - { from: "In Progress", to: "To Do", label: "Stop Work" }
    - { from: "In Review", to: "Done", label: "Complete" }
    - { from: "In Review", to: "In Progress", label: "Request Changes" }
    - { from: "Done", to: "To Do", label: "Reopen" }

timetracking:
  categories:
    - development
    - testing
    - design
    - research
    - meeting
    - documentation
    - other
`
