package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"sort"

	"github.com/ShiraishiHope/MultiAgents/internal/persistence/indexdb"
	"github.com/ShiraishiHope/MultiAgents/internal/protocol"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
	"github.com/ShiraishiHope/MultiAgents/internal/transport/observer"
)

type oracleStatus struct {
	Mode      string `json:"mode"`
	Connected bool   `json:"connected"`
	Remote    string `json:"remote,omitempty"`
	Sessions  uint64 `json:"sessions,omitempty"`
}

type metricsResponse struct {
	WorldID string             `json:"world_id"`
	Metrics world.WorldMetrics `json:"metrics"`
	Oracle  oracleStatus       `json:"oracle"`
	Index   *indexdb.Stats     `json:"index,omitempty"`
	Runtime runtimeStats       `json:"runtime"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMux(w *world.World, orc *oracleRuntime, idx *indexdb.SQLiteIndex, enablePprof bool, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", func(rw http.ResponseWriter, r *http.Request) {
		writePromMetrics(rw, w.ID(), w.Metrics(), orc, readRuntimeStats())
	})
	mux.HandleFunc("GET /v1/metrics", func(rw http.ResponseWriter, r *http.Request) {
		resp := metricsResponse{
			WorldID: w.ID(),
			Metrics: w.Metrics(),
			Oracle:  orc.status(),
			Runtime: readRuntimeStats(),
		}
		if idx != nil {
			s := idx.Stats()
			resp.Index = &s
		}
		writeJSON(rw, http.StatusOK, resp)
	})
	mux.HandleFunc("GET /v1/agents", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, w.View())
	})
	mux.HandleFunc("GET /v1/agents/{id}", func(rw http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		a, ok := w.View().Agent(id)
		if !ok {
			writeJSON(rw, http.StatusNotFound, errorResponse{Code: protocol.ErrNotFound, Message: "unknown agent " + id})
			return
		}
		writeJSON(rw, http.StatusOK, a)
	})
	if orc.hub != nil {
		mux.HandleFunc("/v1/oracle", orc.hub.Handler())
	} else {
		mux.HandleFunc("/v1/oracle", func(rw http.ResponseWriter, r *http.Request) {
			writeJSON(rw, http.StatusConflict, errorResponse{
				Code:    protocol.ErrBadRequest,
				Message: "server is running with oracle=" + orc.name,
			})
		})
	}
	obs := observer.NewServer(w, logger)
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())

	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func (o *oracleRuntime) status() oracleStatus {
	s := oracleStatus{Mode: o.name, Connected: true}
	if o.hub != nil {
		s.Remote, s.Connected = o.hub.Connected()
		s.Sessions = o.hub.Sessions()
	}
	return s
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// writePromMetrics emits a minimal Prometheus exposition of WorldMetrics.
func writePromMetrics(rw http.ResponseWriter, worldID string, m world.WorldMetrics, orc *oracleRuntime, rt runtimeStats) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(rw, "# HELP sim_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE sim_world_tick gauge\n")
	fmt.Fprintf(rw, "sim_world_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(rw, "# HELP sim_world_agents Agents by liveness.\n")
	fmt.Fprintf(rw, "# TYPE sim_world_agents gauge\n")
	fmt.Fprintf(rw, "sim_world_agents{world=%q,state=%q} %d\n", worldID, "alive", m.Alive)
	fmt.Fprintf(rw, "sim_world_agents{world=%q,state=%q} %d\n", worldID, "dead", m.Dead)

	fmt.Fprintf(rw, "# HELP sim_infection_stage Agents per infection stage.\n")
	fmt.Fprintf(rw, "# TYPE sim_infection_stage gauge\n")
	stages := make([]string, 0, len(m.Stages))
	for k := range m.Stages {
		stages = append(stages, k)
	}
	sort.Strings(stages)
	for _, k := range stages {
		fmt.Fprintf(rw, "sim_infection_stage{world=%q,stage=%q} %d\n", worldID, k, m.Stages[k])
	}

	fmt.Fprintf(rw, "# HELP sim_logistics Items outstanding, carried and delivered.\n")
	fmt.Fprintf(rw, "# TYPE sim_logistics gauge\n")
	fmt.Fprintf(rw, "sim_logistics{world=%q,kind=%q} %d\n", worldID, "items", m.Items)
	fmt.Fprintf(rw, "sim_logistics{world=%q,kind=%q} %d\n", worldID, "carrying", m.Carrying)
	fmt.Fprintf(rw, "sim_logistics{world=%q,kind=%q} %d\n", worldID, "delivered", m.Delivered)

	fmt.Fprintf(rw, "# HELP sim_oracle_calls_total Oracle calls made.\n")
	fmt.Fprintf(rw, "# TYPE sim_oracle_calls_total counter\n")
	fmt.Fprintf(rw, "sim_oracle_calls_total{world=%q} %d\n", worldID, m.OracleCalls)

	fmt.Fprintf(rw, "# HELP sim_oracle_failures_total Oracle calls that failed or timed out.\n")
	fmt.Fprintf(rw, "# TYPE sim_oracle_failures_total counter\n")
	fmt.Fprintf(rw, "sim_oracle_failures_total{world=%q} %d\n", worldID, m.OracleFailures)

	fmt.Fprintf(rw, "# HELP sim_oracle_last_ms Latency of the last oracle call in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE sim_oracle_last_ms gauge\n")
	fmt.Fprintf(rw, "sim_oracle_last_ms{world=%q} %.3f\n", worldID, m.LastOracleMS)

	connected := 0
	if orc.status().Connected {
		connected = 1
	}
	fmt.Fprintf(rw, "# HELP sim_oracle_connected Whether an oracle can currently answer.\n")
	fmt.Fprintf(rw, "# TYPE sim_oracle_connected gauge\n")
	fmt.Fprintf(rw, "sim_oracle_connected{world=%q,mode=%q} %d\n", worldID, orc.name, connected)

	fmt.Fprintf(rw, "# HELP sim_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE sim_world_step_ms gauge\n")
	fmt.Fprintf(rw, "sim_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(rw, "# HELP sim_process_heap_bytes Heap bytes in use and the peak seen.\n")
	fmt.Fprintf(rw, "# TYPE sim_process_heap_bytes gauge\n")
	fmt.Fprintf(rw, "sim_process_heap_bytes{kind=%q} %d\n", "alloc", rt.HeapAllocBytes)
	fmt.Fprintf(rw, "sim_process_heap_bytes{kind=%q} %d\n", "peak", rt.HeapPeakBytes)
	fmt.Fprintf(rw, "sim_process_heap_bytes{kind=%q} %d\n", "sys", rt.SysBytes)

	fmt.Fprintf(rw, "# HELP sim_process_heap_objects Live heap objects.\n")
	fmt.Fprintf(rw, "# TYPE sim_process_heap_objects gauge\n")
	fmt.Fprintf(rw, "sim_process_heap_objects %d\n", rt.HeapObjects)

	fmt.Fprintf(rw, "# HELP sim_process_gc_total Completed GC cycles.\n")
	fmt.Fprintf(rw, "# TYPE sim_process_gc_total counter\n")
	fmt.Fprintf(rw, "sim_process_gc_total %d\n", rt.NumGC)

	fmt.Fprintf(rw, "# HELP sim_process_goroutines Goroutines alive.\n")
	fmt.Fprintf(rw, "# TYPE sim_process_goroutines gauge\n")
	fmt.Fprintf(rw, "sim_process_goroutines %d\n", rt.Goroutines)
}
