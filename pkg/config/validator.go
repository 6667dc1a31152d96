package config

import "fmt"

// Validate performs comprehensive validation on a loaded configuration,
// failing fast on the first problem found, validating component by
// component.
func Validate(cfg *Config) error {
	if err := validateReceiver(cfg.Receiver); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	if err := validatePipeline(cfg.Pipeline); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := validateEnricher(cfg.Enricher); err != nil {
		return fmt.Errorf("enricher: %w", err)
	}
	if err := validateAggregator(cfg.Aggregator); err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}
	if err := validatePersister(cfg.Persister); err != nil {
		return fmt.Errorf("persister: %w", err)
	}
	if err := validateAlert(cfg.Alert); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	if err := validateSystem(cfg.System); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	return nil
}

func validateReceiver(r ReceiverConfig) error {
	if r.MaxDatagramBytes <= 0 {
		return fmt.Errorf("%w: max_datagram_bytes must be positive", ErrInvalidValue)
	}
	if r.MaxDatagramBytes > 64*1024 {
		return fmt.Errorf("%w: max_datagram_bytes exceeds the 64KiB datagram ceiling", ErrInvalidValue)
	}
	if r.PushTimeoutMS <= 0 {
		return fmt.Errorf("%w: receiver_push_timeout_ms must be positive", ErrInvalidValue)
	}
	return nil
}

func validatePipeline(p PipelineConfig) error {
	if p.QueueDepthReceiver <= 0 || p.QueueDepthEnricher <= 0 || p.QueueDepthPersister <= 0 {
		return fmt.Errorf("%w: queue depths must be positive", ErrInvalidValue)
	}
	if p.CostWorkers <= 0 {
		return fmt.Errorf("%w: cost_workers must be positive", ErrInvalidValue)
	}
	return nil
}

func validateEnricher(e EnricherConfig) error {
	if e.TruncatePreviewBytes <= 0 {
		return fmt.Errorf("%w: truncate_preview_bytes must be positive", ErrInvalidValue)
	}
	return nil
}

func validateAggregator(a AggregatorConfig) error {
	if a.WindowSeconds <= 0 {
		return fmt.Errorf("%w: window_seconds must be positive", ErrInvalidValue)
	}
	if a.WindowsRetained <= 0 {
		return fmt.Errorf("%w: windows_retained must be positive", ErrInvalidValue)
	}
	if a.ReservoirSize <= 0 {
		return fmt.Errorf("%w: reservoir_size must be positive", ErrInvalidValue)
	}
	return nil
}

func validatePersister(p PersisterConfig) error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidValue)
	}
	if p.BatchTimeoutMS <= 0 {
		return fmt.Errorf("%w: batch_timeout_ms must be positive", ErrInvalidValue)
	}
	if p.CommitTimeoutMS <= 0 {
		return fmt.Errorf("%w: commit_timeout_ms must be positive", ErrInvalidValue)
	}
	if p.RetryMaxAttempts <= 0 {
		return fmt.Errorf("%w: retry_max_attempts must be positive", ErrInvalidValue)
	}
	if p.RetryBaseMS <= 0 || p.RetryCapMS < p.RetryBaseMS {
		return fmt.Errorf("%w: retry_base_ms/retry_cap_ms out of range", ErrInvalidValue)
	}
	return nil
}

func validateAlert(a AlertConfig) error {
	if a.EvaluationDeadlineMS <= 0 {
		return fmt.Errorf("%w: evaluation_deadline_ms must be positive", ErrInvalidValue)
	}
	if a.RateChangeEpsilon <= 0 {
		return fmt.Errorf("%w: rate_change_epsilon must be positive", ErrInvalidValue)
	}
	return nil
}

func validateSystem(s SystemConfig) error {
	if s.ShutdownGraceMS <= 0 {
		return fmt.Errorf("%w: shutdown_grace_ms must be positive", ErrInvalidValue)
	}
	return nil
}
