package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type lineItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type salePayload struct {
	OrderType     string     `json:"order_type"`
	TableNumber   string     `json:"table_number"`
	Source        string     `json:"source"`
	Items         []lineItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
}

type runConfig struct {
	url     string
	rps     int
	seconds int
	workers int
}

// recorder collects per-request latencies plus success/error counts.
type recorder struct {
	ok        atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (r *recorder) observe(d time.Duration, success bool) {
	if success {
		r.ok.Add(1)
	} else {
		r.failed.Add(1)
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.mu.Unlock()
}

// sorted returns the latencies ready for percentile lookups.
func (r *recorder) sorted() []time.Duration {
	r.mu.Lock()
	out := make([]time.Duration, len(r.latencies))
	copy(out, r.latencies)
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func fire(client *http.Client, url string, body []byte, rec *recorder) {
	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		rec.observe(time.Since(start), false)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		rec.observe(time.Since(start), false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	rec.observe(time.Since(start), resp.StatusCode == 200 || resp.StatusCode == 201)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	// The ledger is a single SQLite writer, so the useful RPS ceiling is far
	// below a networked store.
	cfg := runConfig{
		url:     envStr("TARGET_URL", "http://localhost:8080/api/v1/sales"),
		rps:     envInt("REQUESTS_PER_SECOND", 200),
		seconds: envInt("DURATION_SECONDS", 30),
		workers: envInt("CONCURRENT_WORKERS", 50),
	}

	body, err := json.Marshal(salePayload{
		OrderType:     "dine-in",
		TableNumber:   "T7",
		Source:        "pos",
		PaymentMethod: "cash",
		Items: []lineItem{
			{Name: "Masala Dosa", Quantity: 1, Price: 120},
			{Name: "Filter Coffee", Quantity: 2, Price: 40},
		},
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("target=%s rps=%d duration=%ds workers=%d\n",
		cfg.url, cfg.rps, cfg.seconds, cfg.workers)

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.workers,
			MaxIdleConnsPerHost: cfg.workers,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 60 * time.Second,
	}

	rec := &recorder{}
	jobs := make(chan struct{}, cfg.rps)
	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				fire(client, cfg.url, body, rec)
			}
		}()
	}

	started := time.Now()
	for sec := 0; sec < cfg.seconds; sec++ {
		tickStart := time.Now()
		for j := 0; j < cfg.rps; j++ {
			jobs <- struct{}{}
		}
		fmt.Printf("[%ds] ok=%d failed=%d\n", sec+1, rec.ok.Load(), rec.failed.Load())
		if spent := time.Since(tickStart); spent < time.Second {
			time.Sleep(time.Second - spent)
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(started)
	ok := rec.ok.Load()
	failed := rec.failed.Load()
	total := ok + failed
	lats := rec.sorted()

	fmt.Printf("\ndone in %.2fs: %d requests, %d ok, %d failed (%.2f rps)\n",
		elapsed.Seconds(), total, ok, failed, float64(total)/elapsed.Seconds())
	if len(lats) > 0 {
		var sum time.Duration
		for _, d := range lats {
			sum += d
		}
		fmt.Printf("latency avg=%v p50=%v p95=%v p99=%v min=%v max=%v\n",
			sum/time.Duration(len(lats)),
			percentile(lats, 0.50), percentile(lats, 0.95), percentile(lats, 0.99),
			lats[0], lats[len(lats)-1])
	}
}
