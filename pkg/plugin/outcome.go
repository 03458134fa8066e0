package plugin

import "go.opentelemetry.io/otel/codes"

// Outcome classifies how a test or a whole session ended.
type Outcome string

const (
	OutcomePassed           Outcome = "passed"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeInterrupted      Outcome = "interrupted"
	OutcomeInternalError    Outcome = "internal_error"
	OutcomeUsageError       Outcome = "usage_error"
	OutcomeNoTestsCollected Outcome = "no_tests_collected"
)

// Span attribute keys. The tests.* namespace matches what trace consumers
// built around test telemetry expect.
const (
	attrTestName     = "tests.name"
	attrTestStatus   = "tests.status"
	attrTestError    = "tests.error"
	attrTestStderr   = "tests.stderr"
	attrTestStdout   = "tests.stdout"
	attrTestDuration = "tests.duration"
	attrRunID        = "tests.run_id"
)

// Status maps an outcome onto a span status code. Skipped (or any unknown
// outcome) leaves the status unset.
func (o Outcome) Status() codes.Code {
	switch o {
	case OutcomePassed:
		return codes.Ok
	case OutcomeFailed, OutcomeInterrupted, OutcomeInternalError,
		OutcomeUsageError, OutcomeNoTestsCollected:
		return codes.Error
	default:
		return codes.Unset
	}
}

// ExitCodeOutcome converts a test binary exit code to an outcome. The code
// set mirrors the common test-runner convention; anything unrecognized is a
// failure.
func ExitCodeOutcome(code int) Outcome {
	switch code {
	case 0:
		return OutcomePassed
	case 1:
		return OutcomeFailed
	case 2:
		return OutcomeInterrupted
	case 3:
		return OutcomeInternalError
	case 4:
		return OutcomeUsageError
	case 5:
		return OutcomeNoTestsCollected
	default:
		return OutcomeFailed
	}
}
