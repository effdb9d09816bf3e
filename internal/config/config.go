package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Database   DatabaseConfig        `yaml:"database"`
	Events     EventsConfig          `yaml:"events"`
	Governance GovernanceConfig      `yaml:"governance"`
	Gates      map[string]GateConfig `yaml:"gates"`
	Policy     PolicyConfig          `yaml:"policy"`
	Routing    []RoutingConfig       `yaml:"routing"`
	Logging    LoggingConfig         `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`

	// RateLimitPerMinute is the per-actor request budget. Zero or negative
	// disables rate limiting.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type GovernanceConfig struct {
	CheckTimeoutMs int `yaml:"check_timeout_ms"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	WaitTimeoutMs  int `yaml:"wait_timeout_ms"`

	// GatedTransitions maps "FROM->TO" phase boundaries to the gate that must
	// pass before the transition is allowed.
	GatedTransitions map[string]string `yaml:"gated_transitions"`
}

type GateConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

type RuleConfig struct {
	Name     string  `yaml:"name"`
	Weight   float64 `yaml:"weight"`
	Required bool    `yaml:"required"`
}

type PolicyConfig struct {
	DeniedCategories []string `yaml:"denied_categories"`

	// Profiles maps a role to its allow-list of action categories. A role
	// absent from the map is unrestricted.
	Profiles map[string][]string `yaml:"profiles"`
}

type RoutingConfig struct {
	Keywords   []string `yaml:"keywords"`
	Specialist string   `yaml:"specialist"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Governance.CheckTimeoutMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Governance.PollIntervalMs) * time.Millisecond
}

func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Governance.WaitTimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Governance: GovernanceConfig{
			CheckTimeoutMs: 30000,
			PollIntervalMs: 5000,
			WaitTimeoutMs:  300000,
			GatedTransitions: map[string]string{
				"EXEC->PLAN_VERIFICATION":        "unit-test",
				"LEAD_FINAL_APPROVAL->COMPLETED": "supervisor",
			},
		},
		Gates: map[string]GateConfig{
			"unit-test": {
				Rules: []RuleConfig{
					{Name: "tests-executed", Weight: 50, Required: true},
					{Name: "coverage-threshold", Weight: 30},
					{Name: "exec-checklist-complete", Weight: 20},
				},
			},
			"supervisor": {
				Rules: []RuleConfig{
					{Name: "verification-checklist-complete", Weight: 50, Required: true},
					{Name: "progress-minimum", Weight: 30},
					{Name: "tests-executed", Weight: 20},
				},
			},
		},
		Policy: PolicyConfig{
			DeniedCategories: []string{"background-execution"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects deployment defects up front: gated transitions that
// reference unknown gates, malformed boundary keys, and gates with unusable
// rule sets.
func (c *Config) Validate() error {
	for boundary, gateID := range c.Governance.GatedTransitions {
		if !strings.Contains(boundary, "->") {
			return fmt.Errorf("gated transition %q: want FROM->TO", boundary)
		}
		if _, ok := c.Gates[gateID]; !ok {
			return fmt.Errorf("gated transition %q references unknown gate %q", boundary, gateID)
		}
	}
	for gateID, gate := range c.Gates {
		if len(gate.Rules) == 0 {
			return fmt.Errorf("gate %q has no rules", gateID)
		}
		var total float64
		for _, rule := range gate.Rules {
			if rule.Name == "" {
				return fmt.Errorf("gate %q has a rule with no name", gateID)
			}
			if rule.Weight <= 0 {
				return fmt.Errorf("gate %q rule %q: weight must be positive", gateID, rule.Name)
			}
			total += rule.Weight
		}
		if total <= 0 {
			return fmt.Errorf("gate %q: total weight must be positive", gateID)
		}
	}
	for _, route := range c.Routing {
		if route.Specialist == "" || len(route.Keywords) == 0 {
			return fmt.Errorf("routing rule needs keywords and a specialist")
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOVERNOR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("GOVERNOR_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("GOVERNOR_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("GOVERNOR_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GOVERNOR_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("GOVERNOR_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("GOVERNOR_CHECK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Governance.CheckTimeoutMs = n
		}
	}
	if v := os.Getenv("GOVERNOR_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Governance.PollIntervalMs = n
		}
	}
	if v := os.Getenv("GOVERNOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
