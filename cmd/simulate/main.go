// Booking race simulator: spins up concurrent workers that all try to book
// appointments for a small set of professionals on the same day, then reports
// how many bookings succeeded, how many lost the conflict check, and the
// request latency distribution. With the per-professional lock and the DB
// exclusion constraint in place, successes for one professional never overlap.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetcal/clinic-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL        string
	TenantID          string
	Date              string
	Workers           int
	RequestsPerWorker int
	ProfessionalLimit int
	PostgresDSN       string
}

type DataPool struct {
	Professionals []uuid.UUID
	Clients       []uuid.UUID
	PetsByClient  map[uuid.UUID][]uuid.UUID
}

type Metrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("booking simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d professionals, %d clients", len(pool.Professionals), len(pool.Clients))

	client := &http.Client{Timeout: 10 * time.Second}
	metrics := &Metrics{}

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for i := 0; i < cfg.RequestsPerWorker; i++ {
				bookOnce(client, cfg, pool, rng, metrics)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("=== booking simulation report ===")
	fmt.Printf("duration:  %s\n", elapsed)
	fmt.Printf("requests:  %d\n", metrics.Total)
	fmt.Printf("booked:    %d\n", metrics.Success)
	fmt.Printf("conflicts: %d\n", metrics.Conflict)
	fmt.Printf("errors:    %d\n", metrics.Error)
	fmt.Printf("p50:       %s\n", metrics.Percentile(50))
	fmt.Printf("p95:       %s\n", metrics.Percentile(95))
}

func bookOnce(client *http.Client, cfg SimConfig, pool *DataPool, rng *rand.Rand, metrics *Metrics) {
	professionalID := pool.Professionals[rng.Intn(len(pool.Professionals))]
	clientID := pool.Clients[rng.Intn(len(pool.Clients))]
	pets := pool.PetsByClient[clientID]
	if len(pets) == 0 {
		return
	}
	petID := pets[rng.Intn(len(pets))]

	// A narrow window of start times so workers collide on purpose
	hour := 9 + rng.Intn(3)
	minute := 15 * rng.Intn(4)

	body, _ := json.Marshal(map[string]any{
		"professional_id":  professionalID.String(),
		"client_id":        clientID.String(),
		"pet_id":           petID.String(),
		"appointment_date": cfg.Date,
		"appointment_time": fmt.Sprintf("%02d:%02d", hour, minute),
	})

	req, err := http.NewRequest(http.MethodPost, cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		log.Printf("build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", cfg.TenantID)

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		log.Printf("request failed: %v", err)
		metrics.Record(latency, 0)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	metrics.Record(latency, resp.StatusCode)
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		TenantID:          os.Getenv("SIM_TENANT_ID"),
		Date:              getEnv("SIM_DATE", nextMonday().Format("2006-01-02")),
		Workers:           getInt("SIM_WORKERS", 10),
		RequestsPerWorker: getInt("SIM_REQUESTS_PER_WORKER", 20),
		ProfessionalLimit: getInt("SIM_PROFESSIONAL_LIMIT", 3),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
	}
	if cfg.TenantID == "" {
		log.Fatal("SIM_TENANT_ID is required")
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if _, err := uuid.Parse(cfg.TenantID); err != nil {
		log.Fatalf("SIM_TENANT_ID must be a UUID: %v", err)
	}
	return cfg
}

func loadDataPool(ctx context.Context, pgPool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	tenantID := uuid.MustParse(cfg.TenantID)

	pool := &DataPool{PetsByClient: make(map[uuid.UUID][]uuid.UUID)}

	rows, err := pgPool.Query(ctx, `
		SELECT id FROM professionals WHERE tenant_id = $1 ORDER BY created_at LIMIT $2
	`, tenantID, cfg.ProfessionalLimit)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.Professionals = append(pool.Professionals, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	petRows, err := pgPool.Query(ctx, `
		SELECT id, client_id FROM pets WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load pets: %w", err)
	}
	defer petRows.Close()
	for petRows.Next() {
		var petID, clientID uuid.UUID
		if err := petRows.Scan(&petID, &clientID); err != nil {
			return nil, err
		}
		if len(pool.PetsByClient[clientID]) == 0 {
			pool.Clients = append(pool.Clients, clientID)
		}
		pool.PetsByClient[clientID] = append(pool.PetsByClient[clientID], petID)
	}
	if err := petRows.Err(); err != nil {
		return nil, err
	}

	if len(pool.Professionals) == 0 || len(pool.Clients) == 0 {
		return nil, fmt.Errorf("tenant %s has no seeded professionals or clients", tenantID)
	}
	return pool, nil
}

func nextMonday() time.Time {
	d := time.Now()
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
