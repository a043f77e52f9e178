package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBeforeInitIsNoop(t *testing.T) {
	// Must not panic when metrics were never registered.
	RecordRotation("production", true, 1.5)
	RecordRollback("production", false)
	RecordSignal("production", true)
	SetPoolAvailable("API_KEY", 3)
}

func TestInitAndRecord(t *testing.T) {
	Init()
	assert.True(t, Registered())

	RecordRotation("production", true, 0.2)
	RecordRotation("production", false, 0.1)
	assert.Equal(t, float64(1), testutil.ToFloat64(rotationTotal.WithLabelValues("production", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rotationTotal.WithLabelValues("production", "failure")))

	RecordRollback("staging", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(rollbackTotal.WithLabelValues("staging", "success")))

	RecordSignal("production", false)
	assert.Equal(t, float64(1), testutil.ToFloat64(signalTotal.WithLabelValues("production", "false")))

	SetPoolAvailable("API_KEY", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(poolKeysAvailable.WithLabelValues("API_KEY")))
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	assert.True(t, Registered())
}
