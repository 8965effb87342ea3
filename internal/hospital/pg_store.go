package hospital

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/hospital-ops/internal/timeslot"
)

const uniqueViolationCode = "23505"

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func pgTime(t timeslot.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Microseconds(), Valid: true}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.MRN,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&p.Email,
		&p.DOB,
		&p.Gender,
		&p.Address,
		&p.City,
		&p.Allergies,
		&p.ChronicDiseases,
		&p.CurrentMedications,
		&p.HealthNotes,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

const patientColumns = `
	id, mrn, first_name, last_name, phone, email, dob, gender, address, city,
	allergies, chronic_diseases, current_medications, health_notes, created_at`

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var a Appointment
	var slotStart, slotEnd pgtype.Time

	dest := []any{
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&slotStart,
		&slotEnd,
		&a.Status,
		&a.ConfirmationCode,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SlotStart = timeslot.FromMicroseconds(slotStart.Microseconds)
	a.SlotEnd = timeslot.FromMicroseconds(slotEnd.Microseconds)
	return &a, nil
}

const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id, a.scheduled_date, a.slot_start, a.slot_end,
	a.status, a.confirmation_code, a.created_at, a.updated_at`

// Directory

func (s *PgStore) Departments(ctx context.Context) ([]Department, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name
		FROM departments
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PgStore) Doctors(ctx context.Context, department string) ([]Doctor, error) {
	query := `
		SELECT d.id, d.name, dep.name, d.email
		FROM doctors d
		JOIN departments dep ON d.department_id = dep.id
	`
	var args []any
	if department != "" {
		query += ` WHERE dep.name ILIKE $1`
		args = append(args, "%"+department+"%")
	}
	query += ` ORDER BY d.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Department, &d.Email); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PgStore) DoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	var d Doctor
	err := s.pool.QueryRow(ctx, `
		SELECT d.id, d.name, dep.name, d.email
		FROM doctors d
		JOIN departments dep ON d.department_id = dep.id
		WHERE d.id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Department, &d.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PgStore) PatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) PatientByMRN(ctx context.Context, mrn string) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE mrn = $1
	`, mrn)
	return scanPatient(row)
}

func (s *PgStore) PatientsByPhone(ctx context.Context, phone string) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE phone = $1
		ORDER BY id
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// Patient mutations

func (s *PgStore) CreatePatient(ctx context.Context, p NewPatient) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO patients (
			mrn, first_name, last_name, phone, email, dob, gender, address, city,
			allergies, chronic_diseases, current_medications, health_notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		RETURNING `+patientColumns+`
	`, NewMRN(), p.FirstName, p.LastName, p.Phone, p.Email, p.DOB, p.Gender,
		p.Address, p.City, p.Allergies, p.ChronicDiseases, p.CurrentMedications, p.HealthNotes)
	return scanPatient(row)
}

func (s *PgStore) UpdatePatientMedicalInfo(ctx context.Context, id int64, upd MedicalInfoUpdate) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE patients
		SET allergies           = COALESCE($2, allergies),
		    chronic_diseases    = COALESCE($3, chronic_diseases),
		    current_medications = COALESCE($4, current_medications),
		    health_notes        = COALESCE($5, health_notes)
		WHERE id = $1
		RETURNING `+patientColumns+`
	`, id, upd.Allergies, upd.ChronicDiseases, upd.CurrentMedications, upd.HealthNotes)
	return scanPatient(row)
}

// Schedule windows

func (s *PgStore) ScheduleWindows(ctx context.Context, doctorID int64, date time.Time) ([]ScheduleWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, schedule_date, start_time, end_time
		FROM schedules
		WHERE doctor_id = $1 AND schedule_date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func (s *PgStore) WindowsForDoctor(ctx context.Context, doctorID int64) ([]ScheduleWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, schedule_date, start_time, end_time
		FROM schedules
		WHERE doctor_id = $1 AND schedule_date >= CURRENT_DATE
		ORDER BY schedule_date, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]ScheduleWindow, error) {
	var result []ScheduleWindow
	for rows.Next() {
		var w ScheduleWindow
		var start, end pgtype.Time
		if err := rows.Scan(&w.DoctorID, &w.Date, &start, &end); err != nil {
			return nil, err
		}
		w.Start = timeslot.FromMicroseconds(start.Microseconds)
		w.End = timeslot.FromMicroseconds(end.Microseconds)
		result = append(result, w)
	}
	return result, rows.Err()
}

// Appointments

func (s *PgStore) BookedSlotStarts(ctx context.Context, doctorID int64, date time.Time) ([]timeslot.TimeOfDay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot_start
		FROM appointments
		WHERE doctor_id = $1 AND scheduled_date = $2 AND status != 'cancelled'
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []timeslot.TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, timeslot.FromMicroseconds(t.Microseconds))
	}
	return result, rows.Err()
}

// InsertAppointment fills ID and timestamps on appt. A violation of the
// partial unique index on (doctor_id, scheduled_date, slot_start) for
// scheduled rows surfaces as ErrSlotTaken.
func (s *PgStore) InsertAppointment(ctx context.Context, appt *Appointment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			patient_id, doctor_id, scheduled_date, slot_start, slot_end,
			status, confirmation_code, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, created_at, updated_at
	`, appt.PatientID, appt.DoctorID, appt.Date, pgTime(appt.SlotStart), pgTime(appt.SlotEnd),
		appt.Status, appt.ConfirmationCode,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *PgStore) AppointmentByCode(ctx context.Context, code string, ownerPatientID *int64) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.confirmation_code = $1`
	args := []any{code}
	if ownerPatientID != nil {
		query += ` AND a.patient_id = $2`
		args = append(args, *ownerPatientID)
	}
	return scanAppointment(s.pool.QueryRow(ctx, query, args...))
}

func (s *PgStore) RescheduleAppointment(ctx context.Context, code string, date time.Time, slotStart, slotEnd timeslot.TimeOfDay) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments a
		SET scheduled_date = $2,
		    slot_start     = $3,
		    slot_end       = $4,
		    updated_at     = now()
		WHERE a.confirmation_code = $1 AND a.status = 'scheduled'
		RETURNING `+appointmentColumns+`
	`, code, date, pgTime(slotStart), pgTime(slotEnd))

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return appt, nil
}

func (s *PgStore) CancelAppointment(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE confirmation_code = $1
	`, code)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	return nil
}

// upcomingFilter keeps self-view listings to appointments that have not
// started yet, like the front-desk views expect.
const upcomingFilter = `
	(a.scheduled_date > CURRENT_DATE
	 OR (a.scheduled_date = CURRENT_DATE AND a.slot_start >= CURRENT_TIME))`

func (s *PgStore) AppointmentsByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`, d.name
		FROM appointments a
		JOIN doctors d ON a.doctor_id = d.id
		WHERE a.patient_id = $1
		  AND a.status != 'cancelled'
		  AND `+upcomingFilter+`
		ORDER BY a.scheduled_date, a.slot_start
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		var doctorName string
		a, err := scanAppointment(rows, &doctorName)
		if err != nil {
			return nil, err
		}
		a.DoctorName = doctorName
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *PgStore) AppointmentsByDoctor(ctx context.Context, doctorID int64) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`, p.first_name || ' ' || p.last_name, p.mrn
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		WHERE a.doctor_id = $1
		  AND a.status = 'scheduled'
		  AND `+upcomingFilter+`
		ORDER BY a.scheduled_date, a.slot_start
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		var patientName, mrn string
		a, err := scanAppointment(rows, &patientName, &mrn)
		if err != nil {
			return nil, err
		}
		a.PatientName = patientName
		a.PatientMRN = mrn
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *PgStore) AllAppointments(ctx context.Context, includeCancelled bool) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `, d.name, p.first_name || ' ' || p.last_name, p.mrn
		FROM appointments a
		JOIN doctors d ON a.doctor_id = d.id
		JOIN patients p ON a.patient_id = p.id`
	if !includeCancelled {
		query += `
		WHERE a.status != 'cancelled'`
	}
	query += `
		ORDER BY a.scheduled_date, a.slot_start`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		var doctorName, patientName, mrn string
		a, err := scanAppointment(rows, &doctorName, &patientName, &mrn)
		if err != nil {
			return nil, err
		}
		a.DoctorName = doctorName
		a.PatientName = patientName
		a.PatientMRN = mrn
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *PgStore) HasAppointmentWith(ctx context.Context, doctorID, patientID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2
		)
	`, doctorID, patientID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PgStore) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM doctors),
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM appointments),
			(SELECT COUNT(*) FROM appointments WHERE status = 'scheduled')
	`).Scan(&o.Doctors, &o.Patients, &o.TotalAppointments, &o.ActiveAppointments)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PgStore) InsertAuditEntry(ctx context.Context, e AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, details, created_at)
		VALUES ($1, $2, $3, now())
	`, e.ActorUserID, e.Action, e.Details)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
