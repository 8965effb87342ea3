package capability

import (
	"context"
	"fmt"

	"github.com/carelink/hospital-ops/internal/audit"
	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/policy"
)

// Patient-facing scheduling operations. The patient reference is injected
// from the identity, never taken from arguments, so a patient can only ever
// act on their own record.

func opGetAvailableSlots(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_available_slots",
		Description: "Get open 30-minute appointment slots for a doctor on a date.",
		Params: []Param{
			{Name: "doctor_id", Type: "integer", Required: true},
			{Name: "date", Type: "string", Required: true, Description: "Calendar date, YYYY-MM-DD"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			doctorID, err := args.Int64("doctor_id")
			if err != nil {
				return nil, err
			}
			date, err := args.String("date")
			if err != nil {
				return nil, err
			}
			slots, err := d.scheduler.AvailableSlots(ctx, doctorID, date)
			if err != nil {
				return nil, err
			}
			out := make([]string, 0, len(slots))
			for _, s := range slots {
				out = append(out, s.String())
			}
			return out, nil
		},
	}
}

func opPatientCreateAppointment(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "create_appointment",
		Description: "Book an appointment for yourself. Always provide doctor_name_confirmation to ensure accuracy.",
		Params: []Param{
			{Name: "doctor_id", Type: "integer", Required: true},
			{Name: "doctor_name_confirmation", Type: "string", Required: true, Description: `The doctor's name, e.g. "Dr. Emily Brown"`},
			{Name: "date", Type: "string", Required: true, Description: "Calendar date, YYYY-MM-DD"},
			{Name: "slot_start", Type: "string", Required: true, Description: "Slot start time, HH:MM"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			if id.PatientID == nil {
				return nil, faults.NotFound("profile not found")
			}
			return d.bookAppointment(ctx, id, *id.PatientID, args)
		},
	}
}

// bookAppointment is shared by the patient and admin booking operations once
// the target patient has been resolved.
func (d *Dispatcher) bookAppointment(ctx context.Context, id policy.Identity, patientID int64, args Args) (any, error) {
	doctorID, err := args.Int64("doctor_id")
	if err != nil {
		return nil, err
	}
	confirmation, err := args.String("doctor_name_confirmation")
	if err != nil {
		return nil, err
	}
	date, err := args.String("date")
	if err != nil {
		return nil, err
	}
	slotStart, err := args.String("slot_start")
	if err != nil {
		return nil, err
	}

	doc, err := d.confirmDoctor(ctx, doctorID, confirmation)
	if err != nil {
		return nil, err
	}

	appt, err := d.scheduler.Create(ctx, patientID, doctorID, date, slotStart)
	if err != nil {
		return nil, err
	}

	d.audit.Record(ctx, id.UserID, audit.ActionAppointmentCreated, map[string]any{
		"confirmation_code": appt.ConfirmationCode,
		"patient_id":        patientID,
		"doctor_id":         doctorID,
		"date":              date,
		"slot_start":        slotStart,
	})

	return map[string]any{
		"message":           fmt.Sprintf("Successfully booked with %s.", doc.Name),
		"confirmation_code": appt.ConfirmationCode,
	}, nil
}

func opUpdateAppointment(d *Dispatcher, id policy.Identity) Operation {
	// Patients get an owner-scoped variant: a foreign or unknown code is
	// reported as not found, concealing whether it exists.
	owner := ownerScope(id)

	return Operation{
		Name:        "update_appointment",
		Description: "Change the date or time of an existing appointment.",
		Params: []Param{
			{Name: "confirmation_code", Type: "string", Required: true},
			{Name: "date", Type: "string", Required: true, Description: "New calendar date, YYYY-MM-DD"},
			{Name: "slot_start", Type: "string", Required: true, Description: "New slot start time, HH:MM"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			if id.Role == policy.RolePatient && owner == nil {
				return nil, faults.NotFound("profile not found")
			}
			code, err := args.String("confirmation_code")
			if err != nil {
				return nil, err
			}
			date, err := args.String("date")
			if err != nil {
				return nil, err
			}
			slotStart, err := args.String("slot_start")
			if err != nil {
				return nil, err
			}

			appt, err := d.scheduler.Reschedule(ctx, code, date, slotStart, owner)
			if err != nil {
				return nil, err
			}

			d.audit.Record(ctx, id.UserID, audit.ActionAppointmentUpdated, map[string]any{
				"confirmation_code": code,
				"date":              date,
				"slot_start":        slotStart,
			})

			return appointmentView(*appt), nil
		},
	}
}

func opCancelAppointment(d *Dispatcher, id policy.Identity) Operation {
	owner := ownerScope(id)

	return Operation{
		Name:        "cancel_appointment",
		Description: "Cancel an existing appointment using the confirmation code.",
		Params: []Param{
			{Name: "confirmation_code", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			if id.Role == policy.RolePatient && owner == nil {
				return nil, faults.NotFound("profile not found")
			}
			code, err := args.String("confirmation_code")
			if err != nil {
				return nil, err
			}

			if err := d.scheduler.Cancel(ctx, code, owner); err != nil {
				return nil, err
			}

			d.audit.Record(ctx, id.UserID, audit.ActionAppointmentCancelled, map[string]any{
				"confirmation_code": code,
			})

			return "Appointment cancelled successfully.", nil
		},
	}
}

func opListMyAppointments(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "list_my_appointments",
		Description: "List your current scheduled appointments.",
		Params:      []Param{},
		Handler: func(ctx context.Context, args Args) (any, error) {
			if id.PatientID == nil {
				return nil, faults.NotFound("profile not found")
			}
			appts, err := d.scheduler.ListForPatient(ctx, *id.PatientID)
			if err != nil {
				return nil, err
			}
			return appointmentViews(appts), nil
		},
	}
}

// ownerScope returns the patient id the operation must be restricted to, or
// nil for roles that act across patients.
func ownerScope(id policy.Identity) *int64 {
	if id.Role == policy.RolePatient {
		return id.PatientID
	}
	return nil
}
