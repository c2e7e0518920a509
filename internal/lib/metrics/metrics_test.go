package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPlanChanges(t *testing.T) {
	c := PlanChanges.WithLabelValues(StagePreview, "plan_change")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestCatchUpCounters(t *testing.T) {
	before := testutil.ToFloat64(CatchUpAdvanced)
	CatchUpAdvanced.Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(CatchUpAdvanced))
}
