// Package capability maps an authenticated identity to the closed set of
// operations it may invoke. Construction is role-driven: the per-role tables
// below decide which operations exist for an identity, and each operation
// closes over the identity with its ownership check bound in. An operation a
// role must not have is never constructed for it, rather than constructed
// and guarded.
package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carelink/hospital-ops/internal/audit"
	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/knowledge"
	"github.com/carelink/hospital-ops/internal/policy"
	"github.com/carelink/hospital-ops/internal/scheduling"
)

type Dispatcher struct {
	store     hospital.Store
	scheduler *scheduling.Service
	audit     *audit.Recorder
	knowledge knowledge.Searcher // nil when no knowledge base is wired
	log       zerolog.Logger
}

func NewDispatcher(store hospital.Store, scheduler *scheduling.Service, rec *audit.Recorder, kb knowledge.Searcher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		scheduler: scheduler,
		audit:     rec,
		knowledge: kb,
		log:       log,
	}
}

// builder constructs one operation bound to an identity.
type builder func(d *Dispatcher, id policy.Identity) Operation

// commonBuilders are the read-only directory lookups every role gets.
var commonBuilders = []builder{
	opGetDepartments,
	opGetDoctors,
	opGetDoctorSchedule,
	opGetMyProfile,
}

var roleBuilders = map[policy.Role][]builder{
	policy.RolePatient: {
		opGetAvailableSlots,
		opPatientCreateAppointment,
		opUpdateAppointment,
		opCancelAppointment,
		opListMyAppointments,
	},
	policy.RoleDoctor: {
		opListMyScheduleDetails,
		opGetMyPatientDetails,
	},
	policy.RoleAdmin: {
		opGetAvailableSlots,
		opAdminCreateAppointment,
		opUpdateAppointment,
		opCancelAppointment,
		opListAllAppointments,
		opListPatientAppointments,
		opGetPatientDetails,
		opGetPatientByPhone,
		opGetHospitalOverview,
		opRegisterPatient,
		opUpdatePatientMedicalInfo,
	},
}

// OperationsFor returns the full set of operations available to id.
func (d *Dispatcher) OperationsFor(id policy.Identity) []Operation {
	roleSpecific := roleBuilders[id.Role]
	ops := make([]Operation, 0, len(commonBuilders)+len(roleSpecific)+1)

	for _, b := range commonBuilders {
		ops = append(ops, b(d, id))
	}
	if d.knowledge != nil {
		ops = append(ops, opSearchKnowledge(d, id))
	}
	for _, b := range roleSpecific {
		ops = append(ops, b(d, id))
	}
	return ops
}

// Invoke runs the named operation for id. An operation outside the
// identity's set reports not found, whether it exists for another role or
// not at all.
func (d *Dispatcher) Invoke(ctx context.Context, id policy.Identity, name string, args Args) (any, error) {
	for _, op := range d.OperationsFor(id) {
		if op.Name == name {
			result, err := op.Handler(ctx, args)
			if err != nil {
				d.log.Debug().Str("operation", name).Str("role", string(id.Role)).
					Int64("user", id.UserID).Err(err).Msg("operation failed")
			}
			return result, err
		}
	}
	return nil, faults.NotFound(fmt.Sprintf("operation %q is not available", name))
}

// resolvePatientArg resolves a patient from either an internal patient_id or
// a public mrn argument. The MRN is resolved before any policy check so
// policy never runs against an unresolved external handle.
func (d *Dispatcher) resolvePatientArg(ctx context.Context, args Args) (*hospital.Patient, error) {
	if mrn := args.OptionalString("mrn"); mrn != "" {
		return d.patientByMRN(ctx, mrn)
	}
	patientID, err := args.Int64("patient_id")
	if err != nil {
		return nil, faults.Validation("either patient_id or mrn is required")
	}
	return d.patientByID(ctx, patientID)
}

func (d *Dispatcher) patientByID(ctx context.Context, id int64) (*hospital.Patient, error) {
	p, err := d.store.PatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, hospital.ErrPatientNotFound) {
			return nil, faults.NotFound("patient not found")
		}
		return nil, faults.Store("load patient", err)
	}
	return p, nil
}

func (d *Dispatcher) patientByMRN(ctx context.Context, mrn string) (*hospital.Patient, error) {
	p, err := d.store.PatientByMRN(ctx, mrn)
	if err != nil {
		if errors.Is(err, hospital.ErrPatientNotFound) {
			return nil, faults.NotFound("patient not found")
		}
		return nil, faults.Store("load patient", err)
	}
	return p, nil
}

// confirmDoctor loads the doctor and cross-checks the caller-supplied name
// confirmation, catching id/name mix-ups before anything is booked.
func (d *Dispatcher) confirmDoctor(ctx context.Context, doctorID int64, nameConfirmation string) (*hospital.Doctor, error) {
	doc, err := d.store.DoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, hospital.ErrDoctorNotFound) {
			return nil, faults.NotFound(fmt.Sprintf("doctor id %d does not exist", doctorID))
		}
		return nil, faults.Store("load doctor", err)
	}
	if nameConfirmation != "" && !containsFold(doc.Name, nameConfirmation) {
		return nil, faults.Validation(fmt.Sprintf(
			"doctor id %d belongs to %s, not %q; verify the id with get_doctors and try again",
			doctorID, doc.Name, nameConfirmation))
	}
	return doc, nil
}
