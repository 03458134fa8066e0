package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

func TestOutcomeStatus(t *testing.T) {
	assert.Equal(t, codes.Ok, OutcomePassed.Status())
	assert.Equal(t, codes.Error, OutcomeFailed.Status())
	assert.Equal(t, codes.Error, OutcomeInterrupted.Status())
	assert.Equal(t, codes.Error, OutcomeInternalError.Status())
	assert.Equal(t, codes.Error, OutcomeUsageError.Status())
	assert.Equal(t, codes.Error, OutcomeNoTestsCollected.Status())
	assert.Equal(t, codes.Unset, OutcomeSkipped.Status())
	assert.Equal(t, codes.Unset, Outcome("something else").Status())
}

func TestExitCodeOutcome(t *testing.T) {
	assert.Equal(t, OutcomePassed, ExitCodeOutcome(0))
	assert.Equal(t, OutcomeFailed, ExitCodeOutcome(1))
	assert.Equal(t, OutcomeInterrupted, ExitCodeOutcome(2))
	assert.Equal(t, OutcomeInternalError, ExitCodeOutcome(3))
	assert.Equal(t, OutcomeUsageError, ExitCodeOutcome(4))
	assert.Equal(t, OutcomeNoTestsCollected, ExitCodeOutcome(5))
	assert.Equal(t, OutcomeFailed, ExitCodeOutcome(6))
	assert.Equal(t, OutcomeFailed, ExitCodeOutcome(-1))
}
