// simulate fires concurrent booking requests at the same slot to verify
// that the store's uniqueness constraint lets exactly one caller win.
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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/hospital-ops/internal/config"
	"github.com/carelink/hospital-ops/internal/db"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	DoctorID    int64
	Date        string
	SlotStart   string
	PostgresDSN string
	JWTSecret   string
}

type OperationMetrics struct {
	Total     int
	Success   int
	Conflict  int
	Error     int
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	om.mu.Lock()
	defer om.mu.Unlock()

	om.Total++
	switch {
	case status == http.StatusOK:
		om.Success++
	case status == http.StatusConflict:
		om.Conflict++
	default:
		om.Error++
	}
	om.Latencies = append(om.Latencies, latency)
}

func (om *OperationMetrics) Stats() (avg, min, max, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	patients, err := loadPatientIDs(ctx, pgPool, cfg.Workers)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(patients) < cfg.Workers {
		log.Fatalf("need at least %d seeded patients, found %d", cfg.Workers, len(patients))
	}

	if cfg.DoctorID == 0 {
		cfg.DoctorID, cfg.Date, cfg.SlotStart, err = pickOpenSlot(ctx, pgPool)
		if err != nil {
			log.Fatalf("pick open slot: %v", err)
		}
	}

	log.Printf("contending: %d workers, doctor=%d date=%s slot=%s",
		cfg.Workers, cfg.DoctorID, cfg.Date, cfg.SlotStart)

	metrics := &OperationMetrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(patientID int64) {
			defer wg.Done()
			status, latency, err := bookSlot(client, cfg, patientID)
			if err != nil {
				log.Printf("request failed: %v", err)
				metrics.Record(latency, 0)
				return
			}
			metrics.Record(latency, status)
		}(patients[i])
	}
	wg.Wait()

	avg, min, max, p95 := metrics.Stats()
	fmt.Println("=== contention report ===")
	fmt.Printf("requests:  %d\n", metrics.Total)
	fmt.Printf("booked:    %d\n", metrics.Success)
	fmt.Printf("conflicts: %d\n", metrics.Conflict)
	fmt.Printf("errors:    %d\n", metrics.Error)
	fmt.Printf("latency:   avg=%s min=%s max=%s p95=%s\n", avg, min, max, p95)

	if metrics.Success != 1 {
		log.Fatalf("expected exactly one winner, got %d", metrics.Success)
	}
	log.Println("exactly one booking won the slot")
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:     getInt("SIM_WORKERS", 16),
		DoctorID:    int64(getInt("SIM_DOCTOR_ID", 0)),
		Date:        os.Getenv("SIM_DATE"),
		SlotStart:   os.Getenv("SIM_SLOT_START"),
		PostgresDSN: baseCfg.PostgresDSN,
		JWTSecret:   baseCfg.JWTSecret,
	}
}

func loadPatientIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pickOpenSlot finds a schedule window at least one day out and returns its
// first slot.
func pickOpenSlot(ctx context.Context, pool *pgxpool.Pool) (doctorID int64, date, slotStart string, err error) {
	var d time.Time
	var start string
	err = pool.QueryRow(ctx, `
		SELECT doctor_id, schedule_date, start_time::text
		FROM schedules
		WHERE schedule_date > CURRENT_DATE
		ORDER BY schedule_date, start_time
		LIMIT 1
	`).Scan(&doctorID, &d, &start)
	if err != nil {
		return 0, "", "", err
	}

	t, err := timeslot.Parse(start)
	if err != nil {
		return 0, "", "", err
	}
	return doctorID, d.Format(timeslot.DateLayout), t.String(), nil
}

func bookSlot(client *http.Client, cfg SimConfig, patientID int64) (status int, latency time.Duration, err error) {
	token, err := adminToken(cfg.JWTSecret)
	if err != nil {
		return 0, 0, err
	}

	body, err := json.Marshal(map[string]any{
		"args": map[string]any{
			"patient_id":               patientID,
			"doctor_id":                cfg.DoctorID,
			"doctor_name_confirmation": "",
			"date":                     cfg.Date,
			"slot_start":               cfg.SlotStart,
		},
	})
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequest(http.MethodPost,
		cfg.APIBaseURL+"/operations/create_appointment", bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	latency = time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, latency, nil
}

func adminToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": 1,
		"role":    "admin",
		"exp":     time.Now().Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
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
