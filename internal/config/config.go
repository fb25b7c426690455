package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models autoboard.yml. Per-project runtime switches (automation
// on/off, tick interval) live in the database settings tables; this file
// carries process-level thresholds and commands.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		MaxActiveLayers int `yaml:"max_active_layers"`
	} `yaml:"scheduler"`
	Breakdown struct {
		ComplexityThreshold int `yaml:"complexity_threshold"`
		MinSubtasks         int `yaml:"min_subtasks"`
		MaxSubtasks         int `yaml:"max_subtasks"`
		MaxDepth            int `yaml:"max_depth"`
	} `yaml:"breakdown"`
	Timeouts struct {
		StageMinutes int `yaml:"stage_minutes"`
		TestMinutes  int `yaml:"test_minutes"`
		MergeMinutes int `yaml:"merge_minutes"`
	} `yaml:"timeouts"`
	Daemon struct {
		PollSeconds        int `yaml:"poll_seconds"`
		ReviewSweepSeconds int `yaml:"review_sweep_seconds"`
	} `yaml:"daemon"`
	Review struct {
		TestCommands map[string]string `yaml:"test_commands"`
	} `yaml:"review"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Scheduler.IntervalSeconds < 1 {
		return fmt.Errorf("config.scheduler.interval_seconds must be >= 1")
	}
	if c.Scheduler.MaxActiveLayers < 1 {
		return fmt.Errorf("config.scheduler.max_active_layers must be >= 1")
	}
	if c.Breakdown.ComplexityThreshold < 1 || c.Breakdown.ComplexityThreshold > 10 {
		return fmt.Errorf("config.breakdown.complexity_threshold must be in [1,10]")
	}
	if c.Breakdown.MinSubtasks < 2 {
		return fmt.Errorf("config.breakdown.min_subtasks must be >= 2")
	}
	if c.Breakdown.MaxSubtasks < c.Breakdown.MinSubtasks {
		return fmt.Errorf("config.breakdown.max_subtasks must be >= min_subtasks")
	}
	if c.Breakdown.MaxDepth < 0 {
		return fmt.Errorf("config.breakdown.max_depth must be >= 0")
	}
	if c.Timeouts.StageMinutes < 1 {
		return fmt.Errorf("config.timeouts.stage_minutes must be >= 1")
	}
	if c.Timeouts.TestMinutes < 1 {
		return fmt.Errorf("config.timeouts.test_minutes must be >= 1")
	}
	if c.Timeouts.MergeMinutes < 1 {
		return fmt.Errorf("config.timeouts.merge_minutes must be >= 1")
	}
	if c.Daemon.PollSeconds < 1 {
		return fmt.Errorf("config.daemon.poll_seconds must be >= 1")
	}
	if c.Daemon.ReviewSweepSeconds < 1 {
		return fmt.Errorf("config.daemon.review_sweep_seconds must be >= 1")
	}
	for stack, cmd := range c.Review.TestCommands {
		if cmd == "" {
			return fmt.Errorf("config.review.test_commands.%s is empty", stack)
		}
	}
	return nil
}

// StageTimeout returns the stalled-stage threshold as a duration.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Timeouts.StageMinutes) * time.Minute
}

// TestTimeout bounds a single test run.
func (c *Config) TestTimeout() time.Duration {
	return time.Duration(c.Timeouts.TestMinutes) * time.Minute
}

// MergeTimeout bounds a single merge attempt.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.Timeouts.MergeMinutes) * time.Minute
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "autoboard.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
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
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	cfg.Project.ID = projectID
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

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

const defaultTemplate = `project:
  id: %s
  name: ""

scheduler:
  interval_seconds: 60
  max_active_layers: 3

breakdown:
  complexity_threshold: 7
  min_subtasks: 2
  max_subtasks: 4
  max_depth: 1

timeouts:
  stage_minutes: 20
  test_minutes: 15
  merge_minutes: 5

daemon:
  poll_seconds: 10
  review_sweep_seconds: 30

review:
  test_commands:
    node: "npm test"
    rust: "cargo test"
    python: "python -m pytest"
    go: "go test ./..."
`
