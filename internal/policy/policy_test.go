package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	linked bool
	err    error
}

func (s stubChecker) HasAppointmentWith(ctx context.Context, doctorID, patientID int64) (bool, error) {
	return s.linked, s.err
}

func ptr(v int64) *int64 { return &v }

func TestPatientOwnRecord(t *testing.T) {
	id := Identity{UserID: 1, Role: RolePatient, PatientID: ptr(42)}

	d, err := CanActOnPatient(context.Background(), id, 42, stubChecker{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestPatientForeignRecordDenied(t *testing.T) {
	id := Identity{UserID: 1, Role: RolePatient, PatientID: ptr(42)}

	d, err := CanActOnPatient(context.Background(), id, 43, stubChecker{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwnRecord, d.Reason)
}

func TestPatientWithoutPatientRefDenied(t *testing.T) {
	id := Identity{UserID: 1, Role: RolePatient}

	d, err := CanActOnPatient(context.Background(), id, 43, stubChecker{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestDoctorDerivedRelationship(t *testing.T) {
	id := Identity{UserID: 2, Role: RoleDoctor, DoctorID: ptr(7)}

	d, err := CanActOnPatient(context.Background(), id, 42, stubChecker{linked: true})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = CanActOnPatient(context.Background(), id, 42, stubChecker{linked: false})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPatientNotAssigned, d.Reason)
}

func TestDoctorCheckerError(t *testing.T) {
	id := Identity{UserID: 2, Role: RoleDoctor, DoctorID: ptr(7)}

	_, err := CanActOnPatient(context.Background(), id, 42, stubChecker{err: errors.New("store down")})
	assert.Error(t, err)
}

func TestAdminUnrestricted(t *testing.T) {
	id := Identity{UserID: 3, Role: RoleAdmin}

	d, err := CanActOnPatient(context.Background(), id, 42, stubChecker{linked: false})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestUnknownRoleDenied(t *testing.T) {
	id := Identity{UserID: 4, Role: Role("janitor")}

	d, err := CanActOnPatient(context.Background(), id, 42, stubChecker{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
