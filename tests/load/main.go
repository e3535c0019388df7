package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	httpserver "github.com/ram-tewari/neo-alexandria-sub020/internal/http"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/http/handlers"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/ingest"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/notify"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/scheduler"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type drainResult struct {
	Enqueued      int     `json:"enqueued"`
	MaxConcurrent int     `json:"max_concurrent"`
	DrainSeconds  float64 `json:"drain_seconds"`
	ItemsPerSec   float64 `json:"items_per_sec"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	QueueDrain     drainResult      `json:"queue_drain"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server  *httptest.Server
	backend *httptest.Server
	close   func()
}

func main() {
	enqueueTotal := flag.Int("enqueue-total", 300, "total enqueue requests")
	enqueueConcurrency := flag.Int("enqueue-concurrency", 24, "concurrency for enqueue requests")
	listTotal := flag.Int("list-total", 200, "total list requests")
	listConcurrency := flag.Int("list-concurrency", 20, "concurrency for list requests")
	drainTotal := flag.Int("drain-total", 120, "items enqueued for the drain measurement")
	maxConcurrent := flag.Int("max-concurrent", 3, "scheduler slot budget for the drain measurement")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env := startBenchmarkEnvironment(*maxConcurrent)
	defer env.close()

	client := &http.Client{Timeout: 10 * time.Second}
	var urlCounter int64

	enqueueScenario := runScenario("items_enqueue", *enqueueTotal, *enqueueConcurrency, func(index int) error {
		n := atomic.AddInt64(&urlCounter, 1)
		payload := map[string]any{
			"url": fmt.Sprintf("https://example.com/load/doc-%d-%d", index, n),
		}
		return postJSON(client, env.server.URL+"/v1/items", payload, http.StatusAccepted)
	})

	listScenario := runScenario("items_list", *listTotal, *listConcurrency, func(int) error {
		return getJSON(client, env.server.URL+"/v1/items", http.StatusOK)
	})

	drain := runDrainScenario(client, env.server.URL, *drainTotal, *maxConcurrent)

	results := []scenarioResult{enqueueScenario, listScenario}
	slo := map[string]bool{
		"enqueue_p95_le_200ms": enqueueScenario.P95MS <= 200,
		"list_p95_le_200ms":    listScenario.P95MS <= 200,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		QueueDrain:     drain,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

// startBenchmarkEnvironment wires a scheduler against an in-process ingestion
// backend that accepts instantly and reports success on the first poll.
func startBenchmarkEnvironment(maxConcurrent int) *benchmarkEnv {
	logger := log.New(io.Discard, "", 0)

	var externalCounter int64
	backendMux := http.NewServeMux()
	backendMux.HandleFunc("/v1/resources", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		id := atomic.AddInt64(&externalCounter, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("res-%d", id)})
	})
	backendMux.HandleFunc("/v1/resources/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ingest.StatusReport{Terminal: true, Success: true})
	})
	backend := httptest.NewServer(backendMux)

	ingestClient := ingest.NewClient(ingest.ClientConfig{
		BaseURL: backend.URL,
		Timeout: 5 * time.Second,
	})
	sched := scheduler.New(
		ingestClient,
		notify.NewLogNotifier(logger),
		scheduler.Config{
			MaxConcurrent: maxConcurrent,
			PollInterval:  5 * time.Millisecond,
			PollTimeout:   30 * time.Second,
		},
		scheduler.Callbacks{},
		logger,
	)

	uploadDir, err := os.MkdirTemp("", "na-load-uploads")
	if err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	api := handlers.NewAPI(sched, uploadDir)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server:  server,
		backend: backend,
		close: func() {
			server.Close()
			sched.Close()
			backend.Close()
			_ = os.RemoveAll(uploadDir)
		},
	}
}

// runDrainScenario measures how long the scheduler needs to walk a batch of
// items through the full lifecycle under the configured slot budget.
func runDrainScenario(client *http.Client, baseURL string, total int, maxConcurrent int) drainResult {
	if total <= 0 {
		return drainResult{MaxConcurrent: maxConcurrent}
	}

	// Start from an empty queue so the completed count below is exact.
	clearRequest, _ := http.NewRequest(http.MethodDelete, baseURL+"/v1/items", nil)
	if response, err := client.Do(clearRequest); err == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}

	startedAt := time.Now()
	for i := 0; i < total; i++ {
		payload := map[string]any{"url": fmt.Sprintf("https://example.com/drain/doc-%d", i)}
		if err := postJSON(client, baseURL+"/v1/items", payload, http.StatusAccepted); err != nil {
			log.Fatalf("drain enqueue failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		completed, err := countCompleted(client, baseURL)
		if err != nil {
			log.Fatalf("drain status poll failed: %v", err)
		}
		if completed >= total {
			elapsed := time.Since(startedAt).Seconds()
			return drainResult{
				Enqueued:      total,
				MaxConcurrent: maxConcurrent,
				DrainSeconds:  round2(elapsed),
				ItemsPerSec:   round2(float64(total) / elapsed),
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	log.Fatalf("drain scenario timed out with queue not fully completed")
	return drainResult{}
}

func countCompleted(client *http.Client, baseURL string) (int, error) {
	request, err := http.NewRequest(http.MethodGet, baseURL+"/v1/items", nil)
	if err != nil {
		return 0, err
	}
	response, err := client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	var decoded struct {
		Items []struct {
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return 0, err
	}

	completed := 0
	for _, item := range decoded.Items {
		if item.Status == "completed" {
			completed++
		}
	}
	return completed, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(client *http.Client, url string, payload any, expectedStatus int) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
