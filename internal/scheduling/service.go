// Package scheduling implements slot availability and the appointment
// lifecycle. Concurrency safety for booking rests on the store's uniqueness
// constraint, not on any in-process locking: of two racing bookings for one
// slot, the store admits exactly one and the other surfaces as a conflict.
package scheduling

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/slotcache"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

type Config struct {
	SlotMinutes   int           // fixed slot duration, 30 in production
	BookingBuffer time.Duration // minimum lead time before a bookable slot
}

type Service struct {
	store hospital.Store
	cache *slotcache.Cache
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger
}

type Option func(*Service)

// WithClock replaces the wall clock, for tests of the buffer logic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store hospital.Store, cache *slotcache.Cache, cfg Config, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) bufferMinutes() int {
	return int(s.cfg.BookingBuffer / time.Minute)
}

// AvailableSlots lists open slot starts for the doctor on the date, ascending.
// A doctor without a schedule window, or with every slot booked or inside the
// booking buffer, yields an empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64, date string) ([]timeslot.TimeOfDay, error) {
	day, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, faults.Validation(err.Error())
	}

	if cached, ok := s.cache.Get(ctx, doctorID, date); ok {
		return parseSlotList(cached)
	}

	windows, err := s.store.ScheduleWindows(ctx, doctorID, day)
	if err != nil {
		return nil, faults.Store("load schedule windows", err)
	}
	if len(windows) == 0 {
		return nil, nil
	}

	bookedStarts, err := s.store.BookedSlotStarts(ctx, doctorID, day)
	if err != nil {
		return nil, faults.Store("load booked slots", err)
	}
	booked := make(map[timeslot.TimeOfDay]struct{}, len(bookedStarts))
	for _, b := range bookedStarts {
		booked[b] = struct{}{}
	}

	now := s.now()
	today := timeslot.SameDay(day, now)

	var open []timeslot.TimeOfDay
	for _, w := range windows {
		for slot := range timeslot.Slots(w.Start, w.End, s.cfg.SlotMinutes) {
			if _, taken := booked[slot]; taken {
				continue
			}
			if today && timeslot.WithinBuffer(slot.At(day), now, s.cfg.BookingBuffer) {
				continue
			}
			open = append(open, slot)
		}
	}

	s.cache.Put(ctx, doctorID, date, formatSlotList(open))
	return open, nil
}

// Create books a slot and returns the appointment with its confirmation code.
func (s *Service) Create(ctx context.Context, patientID, doctorID int64, date, slotStart string) (*hospital.Appointment, error) {
	day, slot, err := s.parseTarget(date, slotStart)
	if err != nil {
		return nil, err
	}
	if timeslot.WithinBuffer(slot.At(day), s.now(), s.cfg.BookingBuffer) {
		return nil, faults.Validation(fmt.Sprintf(
			"appointments must be booked at least %d minutes in the future", s.bufferMinutes()))
	}

	if _, err := s.store.PatientByID(ctx, patientID); err != nil {
		if errors.Is(err, hospital.ErrPatientNotFound) {
			return nil, faults.NotFound("patient not found")
		}
		return nil, faults.Store("load patient", err)
	}
	if _, err := s.store.DoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, hospital.ErrDoctorNotFound) {
			return nil, faults.NotFound("doctor not found")
		}
		return nil, faults.Store("load doctor", err)
	}

	appt := &hospital.Appointment{
		PatientID:        patientID,
		DoctorID:         doctorID,
		Date:             day,
		SlotStart:        slot,
		SlotEnd:          slot.Add(s.cfg.SlotMinutes),
		Status:           hospital.StatusScheduled,
		ConfirmationCode: newConfirmationCode(s.now()),
	}

	if err := s.store.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, hospital.ErrSlotTaken) {
			return nil, faults.Conflict("slot already booked")
		}
		return nil, faults.Store("book appointment", err)
	}

	s.cache.Invalidate(ctx, doctorID, date)
	s.log.Info().Int64("doctor", doctorID).Str("date", date).Str("slot", slot.String()).
		Str("code", appt.ConfirmationCode).Msg("appointment booked")
	return appt, nil
}

// Reschedule moves an appointment to a new date and slot. When
// ownerPatientID is set (patient self-service) a foreign or unknown code is
// reported as not found, indistinguishable from nonexistence by design.
// The confirmation code is stable across reschedules.
func (s *Service) Reschedule(ctx context.Context, code, date, slotStart string, ownerPatientID *int64) (*hospital.Appointment, error) {
	day, slot, err := s.parseTarget(date, slotStart)
	if err != nil {
		return nil, err
	}
	if timeslot.WithinBuffer(slot.At(day), s.now(), s.cfg.BookingBuffer) {
		return nil, faults.Validation(fmt.Sprintf(
			"rescheduled time must be at least %d minutes in the future", s.bufferMinutes()))
	}

	existing, err := s.lookupOwned(ctx, code, ownerPatientID)
	if err != nil {
		return nil, err
	}
	if existing.Status == hospital.StatusCancelled {
		return nil, faults.Validation("appointment has been cancelled and cannot be rescheduled")
	}

	updated, err := s.store.RescheduleAppointment(ctx, code, day, slot, slot.Add(s.cfg.SlotMinutes))
	if err != nil {
		switch {
		case errors.Is(err, hospital.ErrSlotTaken):
			return nil, faults.Conflict("new slot already booked")
		case errors.Is(err, hospital.ErrAppointmentNotFound):
			return nil, faults.NotFound("appointment not found or not yours")
		default:
			return nil, faults.Store("reschedule appointment", err)
		}
	}

	s.cache.Invalidate(ctx, existing.DoctorID, existing.Date.Format(timeslot.DateLayout))
	s.cache.Invalidate(ctx, existing.DoctorID, date)
	s.log.Info().Str("code", code).Str("date", date).Str("slot", slot.String()).
		Msg("appointment rescheduled")
	return updated, nil
}

// Cancel marks the appointment cancelled. Repeat cancellation succeeds, so
// the call is safe to retry.
func (s *Service) Cancel(ctx context.Context, code string, ownerPatientID *int64) error {
	existing, err := s.lookupOwned(ctx, code, ownerPatientID)
	if err != nil {
		return err
	}
	if existing.Status == hospital.StatusCancelled {
		return nil
	}

	if err := s.store.CancelAppointment(ctx, code); err != nil {
		return faults.Store("cancel appointment", err)
	}

	s.cache.Invalidate(ctx, existing.DoctorID, existing.Date.Format(timeslot.DateLayout))
	s.log.Info().Str("code", code).Msg("appointment cancelled")
	return nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID int64) ([]hospital.Appointment, error) {
	appts, err := s.store.AppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, faults.Store("list patient appointments", err)
	}
	return appts, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID int64) ([]hospital.Appointment, error) {
	appts, err := s.store.AppointmentsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, faults.Store("list doctor appointments", err)
	}
	return appts, nil
}

func (s *Service) ListAll(ctx context.Context, includeCancelled bool) ([]hospital.Appointment, error) {
	appts, err := s.store.AllAppointments(ctx, includeCancelled)
	if err != nil {
		return nil, faults.Store("list appointments", err)
	}
	return appts, nil
}

func (s *Service) parseTarget(date, slotStart string) (time.Time, timeslot.TimeOfDay, error) {
	day, err := timeslot.ParseDate(date)
	if err != nil {
		return time.Time{}, timeslot.TimeOfDay{}, faults.Validation(err.Error())
	}
	slot, err := timeslot.Parse(slotStart)
	if err != nil {
		return time.Time{}, timeslot.TimeOfDay{}, faults.Validation(err.Error())
	}
	return day, slot, nil
}

func (s *Service) lookupOwned(ctx context.Context, code string, ownerPatientID *int64) (*hospital.Appointment, error) {
	appt, err := s.store.AppointmentByCode(ctx, code, ownerPatientID)
	if err != nil {
		if errors.Is(err, hospital.ErrAppointmentNotFound) {
			if ownerPatientID != nil {
				return nil, faults.NotFound("appointment not found or not yours")
			}
			return nil, faults.NotFound("appointment not found")
		}
		return nil, faults.Store("load appointment", err)
	}
	return appt, nil
}

// newConfirmationCode builds the public booking handle, CONF-<digits>.
// A millisecond timestamp alone collides under concurrent booking, so six
// random digits are appended.
func newConfirmationCode(now time.Time) string {
	u := uuid.New()
	suffix := binary.BigEndian.Uint32(u[:4]) % 1_000_000
	return fmt.Sprintf("CONF-%d%06d", now.UnixMilli(), suffix)
}

func formatSlotList(slots []timeslot.TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}

func parseSlotList(raw []string) ([]timeslot.TimeOfDay, error) {
	out := make([]timeslot.TimeOfDay, 0, len(raw))
	for _, r := range raw {
		t, err := timeslot.Parse(r)
		if err != nil {
			return nil, faults.Store("corrupt cached slot", err)
		}
		out = append(out, t)
	}
	return out, nil
}
