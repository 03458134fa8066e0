package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestStartTest_NoSession(t *testing.T) {
	require.Nil(t, Default())
	ctx := StartTest(t)
	assert.NotNil(t, ctx, "usable context even without a session")
}

func TestStartTest_RecordsSubtestSpans(t *testing.T) {
	p, exp := newRecordedPlugin(enabledConfig())
	ctx := context.Background()
	require.NoError(t, p.SessionStart(ctx))
	setDefault(p)
	defer setDefault(nil)

	t.Run("passing", func(t *testing.T) {
		subCtx := StartTest(t)
		assert.NotNil(t, subCtx)
	})
	t.Run("skipping", func(t *testing.T) {
		StartTest(t)
		t.Skip("not today")
	})

	// Subtest cleanups have run by now.
	spans := exp.GetSpans()
	passing := spanByName(spans, "TestStartTest_RecordsSubtestSpans/passing")
	require.NotNil(t, passing)
	assert.Equal(t, codes.Ok, passing.Status.Code)

	skipped := spanByName(spans, "TestStartTest_RecordsSubtestSpans/skipping")
	require.NotNil(t, skipped)
	assert.Equal(t, codes.Unset, skipped.Status.Code)
	assertAttr(t, skipped, attrTestStatus, "skipped")

	p.SessionFinish(ctx, 0)
}
