package stats

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	defer su.Stop()

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern)

	su.RegisterMetric("TestMetric")
	assert.NotNil(t, su.vars.Get("TestMetric"), "expected metric to be registered")
	assert.Equal(t, int64(0), su.Snapshot()["TestMetric"])

	su.Incr("TestMetric")
	assert.Eventually(t, func() bool {
		return su.Snapshot()["TestMetric"] == 1
	}, time.Second, 10*time.Millisecond)

	// deltas for unregistered names are dropped without stalling the loop
	su.Incr("NeverRegistered")
	su.Decr("TestMetric")
	assert.Eventually(t, func() bool {
		return su.Snapshot()["TestMetric"] == 0
	}, time.Second, 10*time.Millisecond)

	_, present := su.Snapshot()["NeverRegistered"]
	assert.False(t, present)
	_, uptime := su.Snapshot()["Uptime"]
	assert.False(t, uptime, "Uptime is a func var, not a counter")
}
