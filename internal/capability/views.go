package capability

import (
	"strings"

	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/timeslot"
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// The view helpers shape entities for the agent layer. Field names are part
// of the stable external contract.

func appointmentView(a hospital.Appointment) map[string]any {
	v := map[string]any{
		"confirmation_code": a.ConfirmationCode,
		"doctor_id":         a.DoctorID,
		"date":              a.Date.Format(timeslot.DateLayout),
		"slot_start":        a.SlotStart.String(),
		"slot_end":          a.SlotEnd.String(),
		"status":            string(a.Status),
	}
	if a.DoctorName != "" {
		v["doctor_name"] = a.DoctorName
	}
	if a.PatientName != "" {
		v["patient_name"] = a.PatientName
	}
	if a.PatientMRN != "" {
		v["patient_mrn"] = a.PatientMRN
	}
	return v
}

func appointmentViews(appts []hospital.Appointment) []map[string]any {
	out := make([]map[string]any, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentView(a))
	}
	return out
}

func doctorView(d hospital.Doctor) map[string]any {
	return map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"department": d.Department,
	}
}

func patientView(p hospital.Patient) map[string]any {
	return map[string]any{
		"id":                  p.ID,
		"mrn":                 p.MRN,
		"first_name":          p.FirstName,
		"last_name":           p.LastName,
		"phone":               p.Phone,
		"email":               strDeref(p.Email),
		"dob":                 strDeref(p.DOB),
		"gender":              strDeref(p.Gender),
		"address":             strDeref(p.Address),
		"city":                strDeref(p.City),
		"allergies":           strDeref(p.Allergies),
		"chronic_diseases":    strDeref(p.ChronicDiseases),
		"current_medications": strDeref(p.CurrentMedications),
		"health_notes":        strDeref(p.HealthNotes),
	}
}

func windowView(w hospital.ScheduleWindow) map[string]any {
	return map[string]any{
		"date":       w.Date.Format(timeslot.DateLayout),
		"start_time": w.Start.String(),
		"end_time":   w.End.String(),
	}
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtrArg(a Args, name string) *string {
	if s := a.OptionalString(name); s != "" {
		return &s
	}
	return nil
}
