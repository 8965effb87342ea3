package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/hospital-ops/internal/db"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	if err := seedDirectory(context.Background(), pool); err != nil {
		log.Fatalf("seed directory: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		department_id BIGINT NOT NULL REFERENCES departments(id),
		email         TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id                  BIGSERIAL PRIMARY KEY,
		mrn                 TEXT NOT NULL UNIQUE,
		first_name          TEXT NOT NULL,
		last_name           TEXT NOT NULL,
		phone               TEXT NOT NULL,
		email               TEXT,
		dob                 TEXT,
		gender              TEXT,
		address             TEXT,
		city                TEXT,
		allergies           TEXT,
		chronic_diseases    TEXT,
		current_medications TEXT,
		health_notes        TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id            BIGSERIAL PRIMARY KEY,
		doctor_id     BIGINT NOT NULL REFERENCES doctors(id),
		schedule_date DATE NOT NULL,
		start_time    TIME NOT NULL,
		end_time      TIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id                BIGSERIAL PRIMARY KEY,
		patient_id        BIGINT NOT NULL REFERENCES patients(id),
		doctor_id         BIGINT NOT NULL REFERENCES doctors(id),
		scheduled_date    DATE NOT NULL,
		slot_start        TIME NOT NULL,
		slot_end          TIME NOT NULL,
		status            TEXT NOT NULL,
		confirmation_code TEXT NOT NULL UNIQUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// Double-booking protection. Concurrent inserts for the same scheduled
	// slot race on this index; exactly one wins.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_active_slot
		ON appointments (doctor_id, scheduled_date, slot_start)
		WHERE status = 'scheduled'`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		action     TEXT NOT NULL,
		details    JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("creating schema")
	for _, stmt := range schemaDDL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// seedDirectory populates departments, doctors, and their schedule windows
// for the coming two weeks.
func seedDirectory(ctx context.Context, pool *pgxpool.Pool) error {
	departments := []string{
		"Cardiology",
		"Dermatology",
		"General Medicine",
		"Orthopedics",
		"Pediatrics",
		"Neurology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	log.Printf("seeding %d departments", len(departments))

	deptIDs := make([]int64, 0, len(departments))
	for _, name := range departments {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO departments (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&id)
		if err != nil {
			return err
		}
		deptIDs = append(deptIDs, id)
	}

	const doctorsPerDept = 4
	log.Printf("seeding %d doctors", len(deptIDs)*doctorsPerDept)

	shifts := [][2]timeslot.TimeOfDay{
		{timeslot.New(9, 0), timeslot.New(13, 0)},
		{timeslot.New(14, 0), timeslot.New(17, 0)},
	}

	for _, deptID := range deptIDs {
		for i := 0; i < doctorsPerDept; i++ {
			name := "Dr. " + gofakeit.Name()
			email := gofakeit.Email()

			var doctorID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO doctors (name, department_id, email)
				VALUES ($1, $2, $3)
				RETURNING id
			`, name, deptID, email).Scan(&doctorID)
			if err != nil {
				return err
			}

			// Morning shift every weekday, afternoon for some doctors.
			nShifts := 1
			if gofakeit.Bool() {
				nShifts = 2
			}
			for day := 0; day < 14; day++ {
				date := time.Now().AddDate(0, 0, day)
				if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
					continue
				}
				for _, shift := range shifts[:nShifts] {
					_, err := tx.Exec(ctx, `
						INSERT INTO schedules (doctor_id, schedule_date, start_time, end_time)
						VALUES ($1, $2, $3, $4)
					`, doctorID, date, shift[0].String(), shift[1].String())
					if err != nil {
						return err
					}
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("directory seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			person := gofakeit.Person()
			dob := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC),
			).Format("2006-01-02")

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (
					mrn, first_name, last_name, phone, email, dob, gender, address, city
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (mrn) DO NOTHING
			`, hospital.NewMRN(), person.FirstName, person.LastName,
				gofakeit.Phone(), person.Contact.Email, dob, person.Gender,
				gofakeit.Street(), gofakeit.City())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}
