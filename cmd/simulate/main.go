// Contention simulator: fires many concurrent reservation requests at the
// same (provider, datetime) key against a running api-server and verifies
// that exactly one wins while the rest come back as conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/clinic-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Rounds      int
	PostgresDSN string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	idx := func(pct int) int {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return i
	}
	return avg, latencies[idx(50)], latencies[idx(95)]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := SimConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Workers:     getEnvInt("SIM_WORKERS", 50),
		Rounds:      getEnvInt("SIM_ROUNDS", 10),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	providers, err := loadIDs(pool, `SELECT id FROM users WHERE role = 'provider' AND active LIMIT $1`, cfg.Rounds)
	if err != nil {
		log.Fatalf("load providers: %v", err)
	}
	patients, err := loadIDs(pool, `SELECT id FROM users WHERE role = 'patient' LIMIT $1`, cfg.Workers)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(providers) == 0 || len(patients) == 0 {
		log.Fatal("run cmd/seed first: no providers or patients found")
	}

	metrics := &OperationMetrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	// Next Monday 09:00 local keeps every target on a business day.
	slotBase := nextMonday(time.Now()).Add(9 * time.Hour)

	violations := 0
	for round := 0; round < cfg.Rounds; round++ {
		provider := providers[round%len(providers)]
		at := slotBase.Add(time.Duration(round) * 30 * time.Minute)

		successes := runRound(client, cfg, metrics, provider, patients, at)
		if successes != 1 {
			violations++
			log.Printf("ROUND %d: expected exactly 1 success for %s@%s, got %d", round, provider, at.Format("2006-01-02T15:04"), successes)
		}
	}

	avg, p50, p95 := metrics.Stats()
	fmt.Printf("requests=%d success=%d conflict=%d error=%d\n",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	fmt.Printf("latency avg=%s p50=%s p95=%s\n", avg, p50, p95)

	if violations > 0 {
		log.Fatalf("single-winner property violated in %d/%d rounds", violations, cfg.Rounds)
	}
	fmt.Println("single-winner property held in every round")
}

func runRound(client *http.Client, cfg SimConfig, metrics *OperationMetrics, provider uuid.UUID, patients []uuid.UUID, at time.Time) int64 {
	var successes int64
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		patient := patients[w%len(patients)]
		wg.Add(1)
		go func() {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"provider_id": provider.String(),
				"patient_id":  patient.String(),
				"datetime":    at.Format("2006-01-02T15:04:05"),
				"symptoms":    "simulated load",
			})

			start := time.Now()
			resp, err := client.Post(cfg.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
			latency := time.Since(start)
			if err != nil {
				metrics.Record(latency, 0)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			metrics.Record(latency, resp.StatusCode)
			if resp.StatusCode == http.StatusCreated {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}

	wg.Wait()
	return successes
}

func loadIDs(pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func nextMonday(from time.Time) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Monday {
			return day
		}
	}
}
