package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// telemetry holds the client's own Prometheus-text-format counters,
// adapted from the teacher's upstream-selection telemetry singleton to
// per-request/per-broker client metrics (requests, redirects, auth
// retries, ping RTT, websocket frame counts).
type telemetry struct {
	enabled bool
	mu      sync.RWMutex

	requestsTotal  map[string]uint64
	dispositions   map[string]uint64
	redirectsTotal map[string]uint64
	authRetries    map[string]uint64
	wsFrames       map[string]uint64
	wsBytes        map[string]uint64
	pingRTTSum     map[string]float64
	pingRTTCount   map[string]uint64
}

var (
	metricsMu sync.RWMutex
	metrics   = telemetry{}
)

func EnableMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metrics.enabled {
		return
	}
	metrics.requestsTotal = make(map[string]uint64)
	metrics.dispositions = make(map[string]uint64)
	metrics.redirectsTotal = make(map[string]uint64)
	metrics.authRetries = make(map[string]uint64)
	metrics.wsFrames = make(map[string]uint64)
	metrics.wsBytes = make(map[string]uint64)
	metrics.pingRTTSum = make(map[string]float64)
	metrics.pingRTTCount = make(map[string]uint64)
	metrics.enabled = true
}

func StartMetricsServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty metrics address")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metricsHandler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func observeRequest(method string) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.requestsTotal[fmt.Sprintf("method=%s", method)]++
}

func observeDisposition(d Disposition) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.dispositions[fmt.Sprintf("disposition=%s", d)]++
}

func observeRedirect(scheme string) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.redirectsTotal[fmt.Sprintf("scheme=%s", scheme)]++
}

func observeAuthRetry(scheme string) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.authRetries[fmt.Sprintf("scheme=%s", scheme)]++
}

func observeWSFrame(direction string, n int) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.wsFrames[fmt.Sprintf("dir=%s", direction)]++
	metrics.wsBytes[fmt.Sprintf("dir=%s", direction)] += uint64(n)
}

func observePingRTT(d time.Duration) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	metrics.pingRTTCount["broker"]++
	metrics.pingRTTSum["broker"] += d.Seconds()
}

func metricsHandler(w http.ResponseWriter, _ *http.Request) {
	metricsMu.RLock()
	enabled := metrics.enabled
	metricsMu.RUnlock()
	if !enabled {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("# metrics disabled\n"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	metrics.mu.RLock()
	defer metrics.mu.RUnlock()

	writeCounterVec(w, "clientcore_requests_total", metrics.requestsTotal)
	writeCounterVec(w, "clientcore_dispositions_total", metrics.dispositions)
	writeCounterVec(w, "clientcore_redirects_total", metrics.redirectsTotal)
	writeCounterVec(w, "clientcore_auth_retries_total", metrics.authRetries)
	writeCounterVec(w, "clientcore_ws_frames_total", metrics.wsFrames)
	writeCounterVec(w, "clientcore_ws_bytes_total", metrics.wsBytes)
	writeSummaryAsCountAndSum(w, "clientcore_ping_rtt_seconds", metrics.pingRTTCount, metrics.pingRTTSum)
}

func writeCounterVec(w http.ResponseWriter, name string, data map[string]uint64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s} %d\n", name, toPromLabels(k), data[k])
	}
}

func writeSummaryAsCountAndSum(w http.ResponseWriter, name string, counts map[string]uint64, sums map[string]float64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		labels := toPromLabels(k)
		fmt.Fprintf(w, "%s_count{%s} %d\n", name, labels, counts[k])
		fmt.Fprintf(w, "%s_sum{%s} %f\n", name, labels, sums[k])
	}
}

func toPromLabels(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		parts[i] = fmt.Sprintf("%s=\"%s\"", kv[0], strings.ReplaceAll(kv[1], "\"", "\\\""))
	}
	return strings.Join(parts, ",")
}
