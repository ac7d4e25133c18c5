package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSessionMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionClosed(true)
	m.RecordSessionRejected()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsReaped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsRejected))
}

func TestTransitionMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordTransition("select_spec")
	m.RecordTransition("select_spec")
	m.RecordTransition("toggle_cors")
	m.RecordHistoryPush()
	m.RecordThemeInput()
	m.RecordThemeInput()
	m.RecordThemeCommit()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("select_spec")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("toggle_cors")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HistoryPushes))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ThemeInputsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ThemeCommitsTotal))
}
