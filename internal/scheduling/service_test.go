package scheduling

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/hospital/hospitaltest"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

var testNow = time.Date(2026, 2, 9, 8, 0, 0, 0, time.Local)

const (
	testDoctorID  = int64(1)
	testPatientID = int64(10)
	otherPatient  = int64(11)
	testDate      = "2026-02-10"
)

func newTestService(t *testing.T) (*Service, *hospitaltest.MemStore) {
	t.Helper()

	store := hospitaltest.NewMemStore()
	store.Now = func() time.Time { return testNow }
	store.AddDoctor(hospital.Doctor{ID: testDoctorID, Name: "Dr. Emily Brown", Department: "Cardiology"})
	store.AddPatient(hospital.Patient{ID: testPatientID, MRN: "MRN-1", FirstName: "Ahmed", LastName: "Khan", Phone: "+1"})
	store.AddPatient(hospital.Patient{ID: otherPatient, MRN: "MRN-2", FirstName: "Ayesha", LastName: "Ali", Phone: "+2"})

	date, err := timeslot.ParseDate(testDate)
	require.NoError(t, err)
	store.AddWindow(hospital.ScheduleWindow{
		DoctorID: testDoctorID,
		Date:     date,
		Start:    timeslot.New(9, 0),
		End:      timeslot.New(12, 0),
	})

	svc := NewService(store, nil, Config{SlotMinutes: 30, BookingBuffer: 20 * time.Minute},
		zerolog.Nop(), WithClock(func() time.Time { return testNow }))
	return svc, store
}

func slotsToStrings(slots []timeslot.TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}

func TestAvailableSlotsFullWindow(t *testing.T) {
	svc, _ := newTestService(t)

	slots, err := svc.AvailableSlots(context.Background(), testDoctorID, testDate)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		slotsToStrings(slots))
}

func TestAvailableSlotsNoWindow(t *testing.T) {
	svc, _ := newTestService(t)

	slots, err := svc.AvailableSlots(context.Background(), testDoctorID, "2026-02-11")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableSlotsSplitShift(t *testing.T) {
	svc, store := newTestService(t)

	date, _ := timeslot.ParseDate(testDate)
	store.AddWindow(hospital.ScheduleWindow{
		DoctorID: testDoctorID, Date: date,
		Start: timeslot.New(14, 0), End: timeslot.New(15, 0),
	})

	slots, err := svc.AvailableSlots(context.Background(), testDoctorID, testDate)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "14:00", "14:30"},
		slotsToStrings(slots))
}

func TestAvailableSlotsExcludesBooked(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "10:00")
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(context.Background(), testDoctorID, testDate)
	require.NoError(t, err)
	assert.NotContains(t, slotsToStrings(slots), "10:00")
	assert.Len(t, slots, 5)
}

func TestAvailableSlotsTodayBuffer(t *testing.T) {
	_, store := newTestService(t)

	// Window on the current date; now is 09:55, buffer 20 minutes, so
	// everything up to and including 10:00 is out.
	today := time.Date(2026, 2, 9, 0, 0, 0, 0, time.Local)
	store.AddWindow(hospital.ScheduleWindow{
		DoctorID: testDoctorID, Date: today,
		Start: timeslot.New(9, 0), End: timeslot.New(12, 0),
	})
	late := NewService(store, nil, Config{SlotMinutes: 30, BookingBuffer: 20 * time.Minute},
		zerolog.Nop(), WithClock(func() time.Time {
			return time.Date(2026, 2, 9, 9, 55, 0, 0, time.Local)
		}))

	slots, err := late.AvailableSlots(context.Background(), testDoctorID, "2026-02-09")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30", "11:00", "11:30"}, slotsToStrings(slots))
}

func TestAvailableSlotsBadDate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AvailableSlots(context.Background(), testDoctorID, "tomorrow")
	assert.True(t, faults.IsKind(err, faults.KindValidation))
}

func TestCreateReturnsConfirmationCode(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^CONF-\d+$`), appt.ConfirmationCode)
	assert.Equal(t, hospital.StatusScheduled, appt.Status)
	assert.Equal(t, "09:30", appt.SlotEnd.String())
}

func TestCreateTooSoonFails(t *testing.T) {
	svc, store := newTestService(t)

	// A free slot 10 minutes from now is still rejected.
	today := time.Date(2026, 2, 9, 0, 0, 0, 0, time.Local)
	store.AddWindow(hospital.ScheduleWindow{
		DoctorID: testDoctorID, Date: today,
		Start: timeslot.New(8, 0), End: timeslot.New(12, 0),
	})

	_, err := svc.Create(context.Background(), testPatientID, testDoctorID, "2026-02-09", "08:10")
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidation))
	assert.Contains(t, err.Error(), "20 minutes in the future")
}

func TestCreateUnknownPatientOrDoctor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 999, testDoctorID, testDate, "09:00")
	assert.True(t, faults.IsKind(err, faults.KindNotFound))

	_, err = svc.Create(context.Background(), testPatientID, 999, testDate, "09:00")
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
}

func TestDoubleBookingConflict(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), otherPatient, testDoctorID, testDate, "09:00")
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindConflict))
	assert.Equal(t, "slot already booked", err.Error())
}

func TestConcurrentBookingExactlyOneWinner(t *testing.T) {
	svc, _ := newTestService(t)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "11:00")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case faults.IsKind(err, faults.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:30")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), appt.ConfirmationCode, nil))

	slots, err := svc.AvailableSlots(context.Background(), testDoctorID, testDate)
	require.NoError(t, err)
	assert.Contains(t, slotsToStrings(slots), "09:30")
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:30")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), appt.ConfirmationCode, nil))
	require.NoError(t, svc.Cancel(context.Background(), appt.ConfirmationCode, nil))
}

func TestCancelMasksForeignAppointment(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:30")
	require.NoError(t, err)

	owner := otherPatient
	err = svc.Cancel(context.Background(), appt.ConfirmationCode, &owner)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
	assert.Equal(t, "appointment not found or not yours", err.Error())
}

func TestCancelUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Cancel(context.Background(), "CONF-0000", nil)
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
}

func TestRescheduleKeepsConfirmationCode(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)

	owner := testPatientID
	updated, err := svc.Reschedule(context.Background(), appt.ConfirmationCode, testDate, "10:30", &owner)
	require.NoError(t, err)
	assert.Equal(t, appt.ConfirmationCode, updated.ConfirmationCode)
	assert.Equal(t, "10:30", updated.SlotStart.String())
	assert.Equal(t, "11:00", updated.SlotEnd.String())

	listed, err := svc.ListForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, appt.ConfirmationCode, listed[0].ConfirmationCode)
	assert.Equal(t, "10:30", listed[0].SlotStart.String())
}

func TestRescheduleIntoHeldSlotConflicts(t *testing.T) {
	svc, store := newTestService(t)

	mine, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), otherPatient, testDoctorID, testDate, "09:30")
	require.NoError(t, err)

	owner := testPatientID
	_, err = svc.Reschedule(context.Background(), mine.ConfirmationCode, testDate, "09:30", &owner)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindConflict))
	assert.Equal(t, "new slot already booked", err.Error())

	// Original appointment unchanged.
	for _, a := range store.Appointments() {
		if a.ConfirmationCode == mine.ConfirmationCode {
			assert.Equal(t, "09:00", a.SlotStart.String())
			assert.Equal(t, hospital.StatusScheduled, a.Status)
		}
	}
}

func TestRescheduleTooSoonFails(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)

	_, err = svc.Reschedule(context.Background(), appt.ConfirmationCode, "2026-02-09", "08:05", nil)
	assert.True(t, faults.IsKind(err, faults.KindValidation))
}

func TestRescheduleForeignCodeMasked(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)

	owner := otherPatient
	_, err = svc.Reschedule(context.Background(), appt.ConfirmationCode, testDate, "10:00", &owner)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindNotFound))
	assert.Equal(t, "appointment not found or not yours", err.Error())
}

func TestRescheduleCancelledRejected(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), appt.ConfirmationCode, nil))

	_, err = svc.Reschedule(context.Background(), appt.ConfirmationCode, testDate, "10:00", nil)
	assert.True(t, faults.IsKind(err, faults.KindValidation))
}

func TestListOrdering(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "11:00")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)

	listed, err := svc.ListForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "09:00", listed[0].SlotStart.String())
	assert.Equal(t, "11:00", listed[1].SlotStart.String())
}

func TestListAllIncludesCancelledOnRequest(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Create(context.Background(), testPatientID, testDoctorID, testDate, "09:00")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), appt.ConfirmationCode, nil))

	all, err := svc.ListAll(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := svc.ListAll(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestConfirmationCodesDistinct(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := newConfirmationCode(now)
		_, dup := seen[code]
		assert.False(t, dup, "duplicate confirmation code %s", code)
		seen[code] = struct{}{}
	}
}
