package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.TaskOperation("add", nil)
	m.TaskOperation("add", errors.New("boom"))
	m.CalendarRequest("create", nil)
	m.AuthOperation("sign_in", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("add", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("add", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calendar.WithLabelValues("create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auth.WithLabelValues("sign_in", ResultSuccess)))

	done := m.StreamOpened()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streams))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.streams))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TaskOperation("add", nil)
	m.CalendarRequest("create", nil)
	m.AuthOperation("sign_in", nil)
	m.StreamOpened()()
}
