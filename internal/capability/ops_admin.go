package capability

import (
	"context"
	"fmt"

	"github.com/carelink/hospital-ops/internal/audit"
	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/policy"
)

// Admin operations act across patients. Ownership checks do not apply, but
// every mutation still writes an audit entry.

func opAdminCreateAppointment(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "create_appointment",
		Description: "Book an appointment for a patient. Always provide doctor_name_confirmation.",
		Params: []Param{
			{Name: "patient_id", Type: "integer", Description: "Internal patient id"},
			{Name: "mrn", Type: "string", Description: "Medical record number, alternative to patient_id"},
			{Name: "doctor_id", Type: "integer", Required: true},
			{Name: "doctor_name_confirmation", Type: "string", Required: true, Description: "The doctor's name"},
			{Name: "date", Type: "string", Required: true, Description: "Calendar date, YYYY-MM-DD"},
			{Name: "slot_start", Type: "string", Required: true, Description: "Slot start time, HH:MM"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			p, err := d.resolvePatientArg(ctx, args)
			if err != nil {
				return nil, err
			}
			return d.bookAppointment(ctx, id, p.ID, args)
		},
	}
}

func opListAllAppointments(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "list_all_appointments",
		Description: "List all appointments in the hospital with patient and doctor names.",
		Params: []Param{
			{Name: "include_cancelled", Type: "boolean", Description: "Also include cancelled appointments"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			appts, err := d.scheduler.ListAll(ctx, args.OptionalBool("include_cancelled"))
			if err != nil {
				return nil, err
			}
			return appointmentViews(appts), nil
		},
	}
}

func opListPatientAppointments(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "list_patient_appointments",
		Description: "List all appointments, including cancelled, for a specific patient.",
		Params: []Param{
			{Name: "patient_id", Type: "integer", Description: "Internal patient id"},
			{Name: "mrn", Type: "string", Description: "Medical record number, alternative to patient_id"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			p, err := d.resolvePatientArg(ctx, args)
			if err != nil {
				return nil, err
			}
			all, err := d.scheduler.ListAll(ctx, true)
			if err != nil {
				return nil, err
			}
			var appts []hospital.Appointment
			for _, a := range all {
				if a.PatientID == p.ID {
					appts = append(appts, a)
				}
			}
			return appointmentViews(appts), nil
		},
	}
}

func opGetPatientDetails(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_patient_details",
		Description: "Get full details of a patient by internal id or MRN.",
		Params: []Param{
			{Name: "patient_id", Type: "integer", Description: "Internal patient id"},
			{Name: "mrn", Type: "string", Description: "Medical record number, alternative to patient_id"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			p, err := d.resolvePatientArg(ctx, args)
			if err != nil {
				return nil, err
			}
			return patientView(*p), nil
		},
	}
}

func opGetPatientByPhone(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_patient_by_phone",
		Description: "Lookup patient details by phone number.",
		Params: []Param{
			{Name: "phone", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			phone, err := args.String("phone")
			if err != nil {
				return nil, err
			}
			patients, err := d.store.PatientsByPhone(ctx, phone)
			if err != nil {
				return nil, faults.Store("lookup patient by phone", err)
			}
			out := make([]map[string]any, 0, len(patients))
			for _, p := range patients {
				out = append(out, patientView(p))
			}
			return out, nil
		},
	}
}

func opGetHospitalOverview(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_hospital_overview",
		Description: "Get high-level hospital statistics including appointment breakdown.",
		Params:      []Param{},
		Handler: func(ctx context.Context, args Args) (any, error) {
			o, err := d.store.Overview(ctx)
			if err != nil {
				return nil, faults.Store("load overview", err)
			}
			return fmt.Sprintf("Hospital Stats: %d Doctors, %d Patients. Appointments: %d Total (%d Scheduled).",
				o.Doctors, o.Patients, o.TotalAppointments, o.ActiveAppointments), nil
		},
	}
}

func opRegisterPatient(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "register_patient",
		Description: "Register a new patient. An MRN is generated and returned.",
		Params: []Param{
			{Name: "first_name", Type: "string", Required: true},
			{Name: "last_name", Type: "string", Required: true},
			{Name: "phone", Type: "string", Required: true},
			{Name: "email", Type: "string"},
			{Name: "dob", Type: "string", Description: "Date of birth, YYYY-MM-DD"},
			{Name: "gender", Type: "string"},
			{Name: "address", Type: "string"},
			{Name: "city", Type: "string"},
			{Name: "allergies", Type: "string"},
			{Name: "chronic_diseases", Type: "string"},
			{Name: "current_medications", Type: "string"},
			{Name: "health_notes", Type: "string"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			firstName, err := args.String("first_name")
			if err != nil {
				return nil, err
			}
			lastName, err := args.String("last_name")
			if err != nil {
				return nil, err
			}
			phone, err := args.String("phone")
			if err != nil {
				return nil, err
			}

			p, err := d.store.CreatePatient(ctx, hospital.NewPatient{
				FirstName:          firstName,
				LastName:           lastName,
				Phone:              phone,
				Email:              strPtrArg(args, "email"),
				DOB:                strPtrArg(args, "dob"),
				Gender:             strPtrArg(args, "gender"),
				Address:            strPtrArg(args, "address"),
				City:               strPtrArg(args, "city"),
				Allergies:          strPtrArg(args, "allergies"),
				ChronicDiseases:    strPtrArg(args, "chronic_diseases"),
				CurrentMedications: strPtrArg(args, "current_medications"),
				HealthNotes:        strPtrArg(args, "health_notes"),
			})
			if err != nil {
				return nil, faults.Store("create patient", err)
			}

			d.audit.Record(ctx, id.UserID, audit.ActionPatientRegistered, map[string]any{
				"patient_id": p.ID,
				"mrn":        p.MRN,
			})

			return patientView(*p), nil
		},
	}
}

func opUpdatePatientMedicalInfo(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "update_patient_medical_info",
		Description: "Update a patient's medical information. Only supplied fields are changed.",
		Params: []Param{
			{Name: "patient_id", Type: "integer", Description: "Internal patient id"},
			{Name: "mrn", Type: "string", Description: "Medical record number, alternative to patient_id"},
			{Name: "allergies", Type: "string"},
			{Name: "chronic_diseases", Type: "string"},
			{Name: "current_medications", Type: "string"},
			{Name: "health_notes", Type: "string"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			p, err := d.resolvePatientArg(ctx, args)
			if err != nil {
				return nil, err
			}

			updated, err := d.store.UpdatePatientMedicalInfo(ctx, p.ID, hospital.MedicalInfoUpdate{
				Allergies:          strPtrArg(args, "allergies"),
				ChronicDiseases:    strPtrArg(args, "chronic_diseases"),
				CurrentMedications: strPtrArg(args, "current_medications"),
				HealthNotes:        strPtrArg(args, "health_notes"),
			})
			if err != nil {
				return nil, faults.Store("update patient medical info", err)
			}

			d.audit.Record(ctx, id.UserID, audit.ActionPatientInfoUpdated, map[string]any{
				"patient_id": p.ID,
			})

			return patientView(*updated), nil
		},
	}
}
