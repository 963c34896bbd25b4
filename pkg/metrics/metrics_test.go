package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOutcome(t *testing.T) {
	before := testutil.ToFloat64(metricOutcomes.WithLabelValues(OutcomeStale))
	RecordOutcome(OutcomeStale)
	RecordOutcome(OutcomeStale)
	assert.Equal(t, before+2, testutil.ToFloat64(metricOutcomes.WithLabelValues(OutcomeStale)))
}

func TestRecordSubmissionAndRejected(t *testing.T) {
	subs := testutil.ToFloat64(metricSubmissions)
	rejected := testutil.ToFloat64(metricRejected)

	RecordSubmission()
	RecordRejected()

	assert.Equal(t, subs+1, testutil.ToFloat64(metricSubmissions))
	assert.Equal(t, rejected+1, testutil.ToFloat64(metricRejected))
}

func TestObserveRequest(t *testing.T) {
	ObserveRequest("ok", 1500*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(metricRequestDuration), 1)
}
