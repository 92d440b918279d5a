package metric_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voicemesh/metric"
)

func testConfig() metric.Config {
	return metric.Config{Port: metric.DefaultMetricsPort, Path: metric.DefaultMetricsPath}
}

func TestStop(t *testing.T) {
	t.Run("given stopped metrics when stopped again then no panic", func(t *testing.T) {
		m := metric.New(testConfig())

		assert.NoError(t, m.Stop())
		assert.NotPanics(t, func() {
			assert.NoError(t, m.Stop())
		})
	})

	t.Run("given running system metrics loop when stopped then loop exits", func(t *testing.T) {
		m := metric.New(testConfig())
		m.UpdateSystemMetrics()

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			assert.NoError(t, m.Stop())
		}()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("stop did not return")
		}
	})
}
