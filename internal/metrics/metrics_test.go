package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Observe("merge", time.Now(), nil)
	m.Observe("merge", time.Now(), errors.New("boom"))
	m.AddPages("merge", 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("merge", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("merge", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.pages.WithLabelValues("merge")))
}

func TestDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("seal", time.Now(), nil)
		m.AddPages("seal", 1)
	})
}
