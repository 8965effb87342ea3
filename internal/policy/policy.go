// Package policy decides whether an identity may act on a patient record.
// Decisions are side-effect free; the doctor rule reads appointment history
// through a narrow checker interface supplied by the caller.
package policy

import "context"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Identity is the authenticated session principal. It lives for one request
// and is never persisted.
type Identity struct {
	UserID    int64
	Role      Role
	PatientID *int64
	DoctorID  *int64
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision            { return Decision{Allowed: true} }
func Deny(reason string) Decision { return Decision{Reason: reason} }

const (
	ReasonNotOwnRecord       = "only allowed to view/act on your own record"
	ReasonPatientNotAssigned = "patient not assigned to you"
)

// RelationshipChecker reports whether a doctor has any appointment history
// with a patient. The doctor-patient relationship is derived from that
// history; there is no assignment table.
type RelationshipChecker interface {
	HasAppointmentWith(ctx context.Context, doctorID, patientID int64) (bool, error)
}

// CanActOnPatient evaluates whether id may read or mutate the record of
// targetPatientID. Admins pass unconditionally; patients must target
// themselves; doctors must have appointment history with the target.
func CanActOnPatient(ctx context.Context, id Identity, targetPatientID int64, rel RelationshipChecker) (Decision, error) {
	switch id.Role {
	case RoleAdmin:
		return Allow(), nil

	case RolePatient:
		if id.PatientID != nil && *id.PatientID == targetPatientID {
			return Allow(), nil
		}
		return Deny(ReasonNotOwnRecord), nil

	case RoleDoctor:
		if id.DoctorID == nil {
			return Deny(ReasonPatientNotAssigned), nil
		}
		linked, err := rel.HasAppointmentWith(ctx, *id.DoctorID, targetPatientID)
		if err != nil {
			return Decision{}, err
		}
		if linked {
			return Allow(), nil
		}
		return Deny(ReasonPatientNotAssigned), nil

	default:
		return Deny("unknown role"), nil
	}
}
