package hospital

import (
	"context"
	"errors"
	"time"

	"github.com/carelink/hospital-ops/internal/timeslot"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is the store-level uniqueness constraint on
	// (doctor, date, slot_start) for scheduled appointments. It is the sole
	// arbiter of concurrent booking: of two simultaneous inserts for the same
	// slot exactly one succeeds and the other receives this error.
	ErrSlotTaken = errors.New("slot already taken")
)

// Store contains all persistence interactions needed by the services.
type Store interface {
	// Directory
	Departments(ctx context.Context) ([]Department, error)
	Doctors(ctx context.Context, department string) ([]Doctor, error)
	DoctorByID(ctx context.Context, id int64) (*Doctor, error)
	PatientByID(ctx context.Context, id int64) (*Patient, error)
	PatientByMRN(ctx context.Context, mrn string) (*Patient, error)
	PatientsByPhone(ctx context.Context, phone string) ([]Patient, error)

	// Patient mutations
	CreatePatient(ctx context.Context, p NewPatient) (*Patient, error)
	UpdatePatientMedicalInfo(ctx context.Context, id int64, upd MedicalInfoUpdate) (*Patient, error)

	// Schedule windows (read-only to the core, created by seeding)
	ScheduleWindows(ctx context.Context, doctorID int64, date time.Time) ([]ScheduleWindow, error)
	WindowsForDoctor(ctx context.Context, doctorID int64) ([]ScheduleWindow, error)

	// Appointments
	BookedSlotStarts(ctx context.Context, doctorID int64, date time.Time) ([]timeslot.TimeOfDay, error)
	InsertAppointment(ctx context.Context, appt *Appointment) error
	AppointmentByCode(ctx context.Context, code string, ownerPatientID *int64) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, code string, date time.Time, slotStart, slotEnd timeslot.TimeOfDay) (*Appointment, error)
	CancelAppointment(ctx context.Context, code string) error
	AppointmentsByPatient(ctx context.Context, patientID int64) ([]Appointment, error)
	AppointmentsByDoctor(ctx context.Context, doctorID int64) ([]Appointment, error)
	AllAppointments(ctx context.Context, includeCancelled bool) ([]Appointment, error)

	// HasAppointmentWith reports whether any appointment, of any status, links
	// the doctor and the patient. Doctor-patient assignment is derived from
	// appointment history; there is no separate assignment table.
	HasAppointmentWith(ctx context.Context, doctorID, patientID int64) (bool, error)

	Overview(ctx context.Context) (*Overview, error)

	// Audit trail, append-only, never read back by the services.
	InsertAuditEntry(ctx context.Context, e AuditEntry) error
}
