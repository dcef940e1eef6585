package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunsTotal_CountsPerTrigger(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues(TriggerCron))
	RunsTotal.WithLabelValues(TriggerCron).Inc()
	RunsTotal.WithLabelValues(TriggerCron).Inc()

	assert.Equal(t, before+2, testutil.ToFloat64(RunsTotal.WithLabelValues(TriggerCron)))
}

func TestCommandsTotal_SplitsByResult(t *testing.T) {
	applied := testutil.ToFloat64(CommandsTotal.WithLabelValues("heat", ResultApplied))
	failed := testutil.ToFloat64(CommandsTotal.WithLabelValues("heat", ResultFailed))

	CommandsTotal.WithLabelValues("heat", ResultFailed).Inc()

	assert.Equal(t, applied, testutil.ToFloat64(CommandsTotal.WithLabelValues("heat", ResultApplied)))
	assert.Equal(t, failed+1, testutil.ToFloat64(CommandsTotal.WithLabelValues("heat", ResultFailed)))
}
