package config_test

import (
	"testing"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsOversizeDatagram(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Receiver.MaxDatagramBytes = 128 * 1024
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsZeroRetryBase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Persister.RetryBaseMS = 0
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsRetryCapBelowBase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Persister.RetryBaseMS = 1000
	cfg.Persister.RetryCapMS = 100
	assert.Error(t, config.Validate(cfg))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, config.SpanKindLLMCall.IsValid())
	assert.False(t, config.SpanKind("bogus").IsValid())

	assert.True(t, config.SpanStatusRunning.IsValid())
	assert.True(t, config.SpanStatusRunning.IsTerminal() == false)
	assert.True(t, config.SpanStatusOK.IsTerminal())

	assert.True(t, config.OpGreaterThan.Compare(0.2, 0.1))
	assert.False(t, config.OpLessThan.Compare(0.2, 0.1))
}
