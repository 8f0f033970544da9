package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// StatsProvider is the counter surface the chat server reports through.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater publishes connection and traffic counters over expvar. All
// mutation flows through a buffered delta channel so hot paths never block
// on the metrics map.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan metricDelta
}

type metricDelta struct {
	name  string
	value int64
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		deltas: make(chan metricDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = expvar.NewMap("flack-stats")

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// apply drains the delta channel. Deltas for names that were never
// registered are dropped rather than killing the loop.
func (su *StatsUpdater) apply() {
	for d := range su.deltas {
		counter, ok := su.vars.Get(d.name).(*expvar.Int)
		if !ok {
			continue
		}
		counter.Add(d.value)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- metricDelta{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- metricDelta{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, expvar.NewInt(name))
}

// Snapshot returns the current value of every registered counter; the
// Uptime func var is excluded.
func (su *StatsUpdater) Snapshot() map[string]int64 {
	snap := make(map[string]int64)
	su.vars.Do(func(kv expvar.KeyValue) {
		if counter, ok := kv.Value.(*expvar.Int); ok {
			snap[kv.Key] = counter.Value()
		}
	})

	return snap
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
