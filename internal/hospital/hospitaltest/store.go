// Package hospitaltest provides an in-memory Store for tests. It mirrors the
// contract of the Postgres store, including the uniqueness constraint on
// active slots, so booking races can be exercised without a database.
package hospitaltest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

type MemStore struct {
	mu sync.Mutex

	// Now drives the upcoming-appointment filters; defaults to time.Now.
	Now func() time.Time

	// FailAudit makes InsertAuditEntry return an error, for testing that
	// audit failures never surface.
	FailAudit bool

	departments map[int64]hospital.Department
	doctors     map[int64]hospital.Doctor
	doctorDept  map[int64]int64
	patients    map[int64]*hospital.Patient
	windows     []hospital.ScheduleWindow
	appts       []*hospital.Appointment
	audits      []hospital.AuditEntry

	nextPatientID int64
	nextApptID    int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		Now:         time.Now,
		departments: make(map[int64]hospital.Department),
		doctors:     make(map[int64]hospital.Doctor),
		doctorDept:  make(map[int64]int64),
		patients:    make(map[int64]*hospital.Patient),
	}
}

// Seed helpers

func (m *MemStore) AddDepartment(d hospital.Department) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[d.ID] = d
}

func (m *MemStore) AddDoctor(d hospital.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *MemStore) AddPatient(p hospital.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.patients[p.ID] = &cp
	if p.ID > m.nextPatientID {
		m.nextPatientID = p.ID
	}
}

func (m *MemStore) AddWindow(w hospital.ScheduleWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
}

// AuditEntries returns a copy of everything recorded so far.
func (m *MemStore) AuditEntries() []hospital.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hospital.AuditEntry, len(m.audits))
	copy(out, m.audits)
	return out
}

// Appointments returns copies of all rows, any status.
func (m *MemStore) Appointments() []hospital.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hospital.Appointment, 0, len(m.appts))
	for _, a := range m.appts {
		out = append(out, *a)
	}
	return out
}

// Store implementation

func (m *MemStore) Departments(ctx context.Context) ([]hospital.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hospital.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) Doctors(ctx context.Context, department string) ([]hospital.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hospital.Doctor
	for _, d := range m.doctors {
		if department != "" && !strings.Contains(strings.ToLower(d.Department), strings.ToLower(department)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) DoctorByID(ctx context.Context, id int64) (*hospital.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, hospital.ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemStore) PatientByID(ctx context.Context, id int64) (*hospital.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, hospital.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) PatientByMRN(ctx context.Context, mrn string) (*hospital.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.MRN == mrn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, hospital.ErrPatientNotFound
}

func (m *MemStore) PatientsByPhone(ctx context.Context, phone string) ([]hospital.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hospital.Patient
	for _, p := range m.patients {
		if p.Phone == phone {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreatePatient(ctx context.Context, np hospital.NewPatient) (*hospital.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPatientID++
	p := &hospital.Patient{
		ID:                 m.nextPatientID,
		MRN:                hospital.NewMRN(),
		FirstName:          np.FirstName,
		LastName:           np.LastName,
		Phone:              np.Phone,
		Email:              np.Email,
		DOB:                np.DOB,
		Gender:             np.Gender,
		Address:            np.Address,
		City:               np.City,
		Allergies:          np.Allergies,
		ChronicDiseases:    np.ChronicDiseases,
		CurrentMedications: np.CurrentMedications,
		HealthNotes:        np.HealthNotes,
		CreatedAt:          m.Now(),
	}
	m.patients[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MemStore) UpdatePatientMedicalInfo(ctx context.Context, id int64, upd hospital.MedicalInfoUpdate) (*hospital.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, hospital.ErrPatientNotFound
	}
	if upd.Allergies != nil {
		p.Allergies = upd.Allergies
	}
	if upd.ChronicDiseases != nil {
		p.ChronicDiseases = upd.ChronicDiseases
	}
	if upd.CurrentMedications != nil {
		p.CurrentMedications = upd.CurrentMedications
	}
	if upd.HealthNotes != nil {
		p.HealthNotes = upd.HealthNotes
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) ScheduleWindows(ctx context.Context, doctorID int64, date time.Time) ([]hospital.ScheduleWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hospital.ScheduleWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID && timeslot.SameDay(w.Date, date) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemStore) WindowsForDoctor(ctx context.Context, doctorID int64) ([]hospital.ScheduleWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hospital.ScheduleWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *MemStore) BookedSlotStarts(ctx context.Context, doctorID int64, date time.Time) ([]timeslot.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timeslot.TimeOfDay
	for _, a := range m.appts {
		if a.DoctorID == doctorID && timeslot.SameDay(a.Date, date) && a.Status != hospital.StatusCancelled {
			out = append(out, a.SlotStart)
		}
	}
	return out, nil
}

func (m *MemStore) InsertAppointment(ctx context.Context, appt *hospital.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotTakenLocked(appt.DoctorID, appt.Date, appt.SlotStart, 0) {
		return hospital.ErrSlotTaken
	}
	m.nextApptID++
	appt.ID = m.nextApptID
	appt.CreatedAt = m.Now()
	appt.UpdatedAt = appt.CreatedAt
	cp := *appt
	m.appts = append(m.appts, &cp)
	return nil
}

func (m *MemStore) slotTakenLocked(doctorID int64, date time.Time, slot timeslot.TimeOfDay, excludeID int64) bool {
	for _, a := range m.appts {
		if a.ID == excludeID {
			continue
		}
		if a.DoctorID == doctorID && timeslot.SameDay(a.Date, date) &&
			a.SlotStart.Compare(slot) == 0 && a.Status == hospital.StatusScheduled {
			return true
		}
	}
	return false
}

func (m *MemStore) AppointmentByCode(ctx context.Context, code string, ownerPatientID *int64) (*hospital.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byCodeLocked(code)
	if a == nil {
		return nil, hospital.ErrAppointmentNotFound
	}
	if ownerPatientID != nil && a.PatientID != *ownerPatientID {
		return nil, hospital.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) byCodeLocked(code string) *hospital.Appointment {
	for _, a := range m.appts {
		if a.ConfirmationCode == code {
			return a
		}
	}
	return nil
}

func (m *MemStore) RescheduleAppointment(ctx context.Context, code string, date time.Time, slotStart, slotEnd timeslot.TimeOfDay) (*hospital.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byCodeLocked(code)
	if a == nil || a.Status != hospital.StatusScheduled {
		return nil, hospital.ErrAppointmentNotFound
	}
	if m.slotTakenLocked(a.DoctorID, date, slotStart, a.ID) {
		return nil, hospital.ErrSlotTaken
	}
	a.Date = date
	a.SlotStart = slotStart
	a.SlotEnd = slotEnd
	a.UpdatedAt = m.Now()
	cp := *a
	return &cp, nil
}

func (m *MemStore) CancelAppointment(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byCodeLocked(code)
	if a == nil {
		return nil
	}
	a.Status = hospital.StatusCancelled
	a.UpdatedAt = m.Now()
	return nil
}

func (m *MemStore) AppointmentsByPatient(ctx context.Context, patientID int64) ([]hospital.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var out []hospital.Appointment
	for _, a := range m.appts {
		if a.PatientID != patientID || a.Status == hospital.StatusCancelled {
			continue
		}
		if a.SlotStart.At(a.Date).Before(now) {
			continue
		}
		out = append(out, *a)
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemStore) AppointmentsByDoctor(ctx context.Context, doctorID int64) ([]hospital.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var out []hospital.Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.Status != hospital.StatusScheduled {
			continue
		}
		if a.SlotStart.At(a.Date).Before(now) {
			continue
		}
		out = append(out, *a)
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemStore) AllAppointments(ctx context.Context, includeCancelled bool) ([]hospital.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hospital.Appointment
	for _, a := range m.appts {
		if !includeCancelled && a.Status == hospital.StatusCancelled {
			continue
		}
		out = append(out, *a)
	}
	sortAppointments(out)
	return out, nil
}

func sortAppointments(appts []hospital.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].SlotStart.Before(appts[j].SlotStart)
	})
}

func (m *MemStore) HasAppointmentWith(ctx context.Context, doctorID, patientID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) Overview(ctx context.Context) (*hospital.Overview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &hospital.Overview{
		Doctors:  int64(len(m.doctors)),
		Patients: int64(len(m.patients)),
	}
	for _, a := range m.appts {
		o.TotalAppointments++
		if a.Status == hospital.StatusScheduled {
			o.ActiveAppointments++
		}
	}
	return o, nil
}

func (m *MemStore) InsertAuditEntry(ctx context.Context, e hospital.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAudit {
		return errors.New("audit sink unavailable")
	}
	m.audits = append(m.audits, e)
	return nil
}
