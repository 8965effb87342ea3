// Package audit writes the append-only action trail. Writes are
// fire-and-forget: a failed audit insert is logged and swallowed, it never
// fails or rolls back the operation that produced it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/hospital-ops/internal/hospital"
)

const (
	ActionAppointmentCreated   = "APPOINTMENT_CREATED"
	ActionAppointmentUpdated   = "APPOINTMENT_UPDATED"
	ActionAppointmentCancelled = "APPOINTMENT_CANCELLED"
	ActionPatientRegistered    = "PATIENT_REGISTERED"
	ActionPatientInfoUpdated   = "PATIENT_MEDICAL_INFO_UPDATED"
)

// Sink is the slice of the record store the recorder needs.
type Sink interface {
	InsertAuditEntry(ctx context.Context, e hospital.AuditEntry) error
}

type Recorder struct {
	sink Sink
	log  zerolog.Logger
}

func NewRecorder(sink Sink, log zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, log: log}
}

// Record writes one entry. Safe on a nil receiver, which makes auditing a
// no-op for tests and tooling.
func (r *Recorder) Record(ctx context.Context, actorUserID int64, action string, details map[string]any) {
	if r == nil {
		return
	}

	payload, err := json.Marshal(details)
	if err != nil {
		r.log.Warn().Err(err).Str("action", action).Msg("audit payload marshal failed")
		payload = []byte("{}")
	}

	entry := hospital.AuditEntry{
		ActorUserID: actorUserID,
		Action:      action,
		Details:     payload,
		CreatedAt:   time.Now(),
	}

	if err := r.sink.InsertAuditEntry(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("action", action).Int64("actor", actorUserID).
			Msg("audit write failed")
	}
}
