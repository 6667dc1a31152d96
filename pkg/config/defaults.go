package config

// DefaultConfig returns the built-in configuration defaults enumerated in
// the design
func DefaultConfig() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			GRPCAddr:         ":4317",
			DatagramAddr:     ":4318",
			MaxDatagramBytes: 64 * 1024,
			PushTimeoutMS:    1_000,
		},
		Pipeline: PipelineConfig{
			QueueDepthReceiver:  4_096,
			QueueDepthEnricher:  4_096,
			QueueDepthPersister: 4_096,
			CostWorkers:         2,
		},
		Enricher: EnricherConfig{
			TruncatePreviewBytes: 4 * 1024,
			HostTag:              "",
			CollectorVersion:     "dev",
		},
		Cost: CostConfig{
			PrefixModelMatch: false,
		},
		Aggregator: AggregatorConfig{
			WindowSeconds:   300,
			WindowsRetained: 12,
			ReservoirSize:   1_024,
		},
		Persister: PersisterConfig{
			BatchSize:        500,
			BatchTimeoutMS:   250,
			CommitTimeoutMS:  10_000,
			RetryMaxAttempts: 10,
			RetryBaseMS:      50,
			RetryCapMS:       5_000,
		},
		Alert: AlertConfig{
			EvaluationDeadlineMS: 2_000,
			RateChangeEpsilon:    1e-9,
		},
		System: SystemConfig{
			ShutdownGraceMS: 30_000,
			ControlAddr:     ":8080",
		},
	}
}
