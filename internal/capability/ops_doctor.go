package capability

import (
	"context"

	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/policy"
)

// Doctor operations. Access to a patient record is gated on appointment
// history with that patient; the denial is explicit rather than masked,
// since the doctor path does not conceal record existence.

func opListMyScheduleDetails(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "list_my_schedule_details",
		Description: "List my scheduled appointments with patient details.",
		Params:      []Param{},
		Handler: func(ctx context.Context, args Args) (any, error) {
			if id.DoctorID == nil {
				return nil, faults.NotFound("profile not found")
			}
			appts, err := d.scheduler.ListForDoctor(ctx, *id.DoctorID)
			if err != nil {
				return nil, err
			}
			return appointmentViews(appts), nil
		},
	}
}

func opGetMyPatientDetails(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_my_patient_details",
		Description: "Get details of a patient who has an appointment with you.",
		Params: []Param{
			{Name: "patient_id", Type: "integer", Description: "Internal patient id"},
			{Name: "mrn", Type: "string", Description: "Medical record number, alternative to patient_id"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			p, err := d.resolvePatientArg(ctx, args)
			if err != nil {
				return nil, err
			}

			decision, err := policy.CanActOnPatient(ctx, id, p.ID, d.store)
			if err != nil {
				return nil, faults.Store("check doctor-patient relationship", err)
			}
			if !decision.Allowed {
				return nil, faults.AccessDenied(decision.Reason)
			}

			return patientView(*p), nil
		},
	}
}
