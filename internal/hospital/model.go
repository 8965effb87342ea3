package hospital

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/carelink/hospital-ops/internal/timeslot"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Department struct {
	ID   int64
	Name string
}

type Doctor struct {
	ID         int64
	Name       string
	Department string
	Email      *string
}

type Patient struct {
	ID                 int64
	MRN                string
	FirstName          string
	LastName           string
	Phone              string
	Email              *string
	DOB                *string
	Gender             *string
	Address            *string
	City               *string
	Allergies          *string
	ChronicDiseases    *string
	CurrentMedications *string
	HealthNotes        *string
	CreatedAt          time.Time
}

// ScheduleWindow is a doctor's working interval on one calendar date.
// Windows on the same date do not overlap; that is trusted seeding input.
type ScheduleWindow struct {
	DoctorID int64
	Date     time.Time
	Start    timeslot.TimeOfDay
	End      timeslot.TimeOfDay
}

type Appointment struct {
	ID               int64
	PatientID        int64
	DoctorID         int64
	Date             time.Time
	SlotStart        timeslot.TimeOfDay
	SlotEnd          timeslot.TimeOfDay
	Status           AppointmentStatus
	ConfirmationCode string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Joined display fields, populated by list queries.
	DoctorName  string
	PatientName string
	PatientMRN  string
}

type AuditEntry struct {
	ActorUserID int64
	Action      string
	Details     []byte
	CreatedAt   time.Time
}

type Overview struct {
	Doctors            int64
	Patients           int64
	TotalAppointments  int64
	ActiveAppointments int64
}

type NewPatient struct {
	FirstName          string
	LastName           string
	Phone              string
	Email              *string
	DOB                *string
	Gender             *string
	Address            *string
	City               *string
	Allergies          *string
	ChronicDiseases    *string
	CurrentMedications *string
	HealthNotes        *string
}

// MedicalInfoUpdate carries a partial update; nil fields keep their stored value.
type MedicalInfoUpdate struct {
	Allergies          *string
	ChronicDiseases    *string
	CurrentMedications *string
	HealthNotes        *string
}

// NewMRN issues a medical record number. Millisecond timestamp plus a random
// suffix; uniqueness is still enforced by the store.
func NewMRN() string {
	return fmt.Sprintf("MRN-%d-%03d", time.Now().UnixMilli(), rand.IntN(1000))
}
