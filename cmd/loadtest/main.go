// Command loadtest drives POST /api/v1/search with a fixed mix of queries
// and reports throughput, latency percentiles and the cache hit rate.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"medicamentos",
	"\"material de curación\"",
	"limpieza AND (hospital OR clínica)",
	"construcción -mantenimiento",
	"ACME",
	"servicios de vigilancia",
	"arrendamiento vehículos",
	"papelería",
	"consultoría OR asesoría",
	"equipo médico",
	"combustible",
	"software licencias",
}

type searchBody struct {
	Query    string `json:"query"`
	Scope    string `json:"scope,omitempty"`
	PageSize int    `json:"page_size"`
}

type searchReply struct {
	CacheHit           bool `json:"cache_hit"`
	AggregatesDegraded bool `json:"aggregates_degraded"`
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	degraded  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, status int, reply *searchReply, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if reply != nil {
		if reply.CacheHit {
			s.cacheHits.Add(1)
		}
		if reply.AggregatesDegraded {
			s.degraded.Add(1)
		}
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	scope := flag.String("scope", "", "search scope sent with every query")
	queryFile := flag.String("queries", "", "file with one query per line (default: built-in mix)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	fmt.Println("=== Contract Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n", len(queries))
	fmt.Println()

	stats := run(*baseURL, *scope, queries, *concurrency, *duration)
	if !report(stats, *duration) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return out, nil
}

func run(baseURL, scope string, queries []string, concurrency int, duration time.Duration) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/search"

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				body, _ := json.Marshal(searchBody{Query: queries[i%len(queries)], Scope: scope, PageSize: 20})
				start := time.Now()
				status, reply, err := post(ctx, client, endpoint, body)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(time.Since(start), status, reply, err)
			}
			return nil
		})
	}

	fmt.Print("Running")
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Wait()
	}()
	for waiting := true; waiting; {
		select {
		case <-progress.C:
			fmt.Print(".")
		case <-done:
			waiting = false
		}
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func post(ctx context.Context, client *http.Client, endpoint string, body []byte) (int, *searchReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}
	var reply searchReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &reply, nil
}

// report prints the results and returns false when nothing completed.
func report(stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	success := stats.success.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", stats.failed.Load())
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(stats.failed.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
		fmt.Printf("Degraded:        %d\n", stats.degraded.Load())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.codes))
	for k, v := range stats.codes {
		codes[k] = v
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	for _, code := range keys {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
