// Package config loads, validates, and hot-reloads pulse's runtime
// configuration, following the same layered approach (built-in defaults →
// YAML → env overrides → validation) as the repo this package was adapted
// from.
package config

import "sync/atomic"

// Config is the umbrella configuration snapshot consumed by every pipeline
// stage. A Config value is immutable once built — reload produces a new
// Config and swaps it in atomically (see Manager), so in-flight operations
// that already hold a *Config keep running under the old values.
type Config struct {
	configDir string

	Receiver   ReceiverConfig
	Pipeline   PipelineConfig
	Enricher   EnricherConfig
	Cost       CostConfig
	Aggregator AggregatorConfig
	Persister  PersisterConfig
	Alert      AlertConfig
	System     SystemConfig
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ReceiverConfig controls the ingress surfaces (C1).
type ReceiverConfig struct {
	GRPCAddr           string `yaml:"grpc_addr"`
	DatagramAddr       string `yaml:"datagram_addr"`
	MaxDatagramBytes   int    `yaml:"max_datagram_bytes"`
	PushTimeoutMS      int    `yaml:"receiver_push_timeout_ms"`
}

// PipelineConfig controls the bounded channels connecting stages (§5).
type PipelineConfig struct {
	QueueDepthReceiver int `yaml:"queue_depth_receiver"`
	QueueDepthEnricher int `yaml:"queue_depth_enricher"`
	QueueDepthPersister int `yaml:"queue_depth_persister"`
	CostWorkers        int `yaml:"cost_workers"`
}

// EnricherConfig controls span enrichment (C3).
type EnricherConfig struct {
	TruncatePreviewBytes int    `yaml:"truncate_preview_bytes"`
	HostTag              string `yaml:"host_tag"`
	CollectorVersion     string `yaml:"collector_version"`
}

// CostConfig controls pricing lookup and cost computation (C4).
type CostConfig struct {
	PrefixModelMatch bool `yaml:"prefix_model_match"`
}

// AggregatorConfig controls rolling-window rollups (C5).
type AggregatorConfig struct {
	WindowSeconds   int `yaml:"window_seconds"`
	WindowsRetained int `yaml:"windows_retained"`
	ReservoirSize   int `yaml:"reservoir_size"`
}

// PersisterConfig controls batching, retry, and backpressure for the
// durable-store sink (C6).
type PersisterConfig struct {
	BatchSize        int `yaml:"batch_size"`
	BatchTimeoutMS   int `yaml:"batch_timeout_ms"`
	CommitTimeoutMS  int `yaml:"commit_timeout_ms"`
	RetryMaxAttempts int `yaml:"retry_max_attempts"`
	RetryBaseMS      int `yaml:"retry_base_ms"`
	RetryCapMS       int `yaml:"retry_cap_ms"`
}

// AlertConfig controls the rule evaluator's cadence and budget (C8).
type AlertConfig struct {
	EvaluationDeadlineMS int     `yaml:"evaluation_deadline_ms"`
	RateChangeEpsilon    float64 `yaml:"rate_change_epsilon"`
}

// SystemConfig holds process-wide ambient settings.
type SystemConfig struct {
	ShutdownGraceMS int    `yaml:"shutdown_grace_ms"`
	ControlAddr     string `yaml:"control_addr"`
}

// Manager holds the currently active Config behind an atomic pointer so
// readers never block and reload is a single copy-on-write swap (the design
// §4.9, §9).
type Manager struct {
	current atomic.Pointer[Config]
}

// NewManager creates a Manager seeded with cfg.
func NewManager(cfg *Config) *Manager {
	m := &Manager{}
	m.current.Store(cfg)
	return m
}

// Snapshot returns the currently active configuration. The returned pointer
// is safe to hold for the duration of one operation — Reload never mutates
// the Config a caller already has a reference to.
func (m *Manager) Snapshot() *Config {
	return m.current.Load()
}

// Reload atomically replaces the active configuration.
func (m *Manager) Reload(cfg *Config) {
	m.current.Store(cfg)
}
