package pulseerr_test

import (
	"errors"
	"testing"

	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := pulseerr.New(pulseerr.StoreTransient, "persister", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorWithReason(t *testing.T) {
	err := pulseerr.NewWithReason(pulseerr.Invalid, "validator", "TimeOrder", errors.New("end before start"))
	assert.Contains(t, err.Error(), "TimeOrder")
	assert.Contains(t, err.Error(), "validator")
}

func TestClassification(t *testing.T) {
	assert.True(t, pulseerr.Retryable(pulseerr.StoreTransient))
	assert.False(t, pulseerr.Retryable(pulseerr.StoreFatal))

	assert.True(t, pulseerr.Terminal(pulseerr.Malformed))
	assert.True(t, pulseerr.Terminal(pulseerr.Invalid))
	assert.False(t, pulseerr.Terminal(pulseerr.PricingMiss))

	assert.True(t, pulseerr.Degrades(pulseerr.StoreFatal))
	assert.False(t, pulseerr.Degrades(pulseerr.StoreTransient))
}
