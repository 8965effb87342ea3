package capability

import (
	"context"
	"errors"
	"strings"

	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/policy"
)

// Read-only directory lookups, available to every role.

func opGetDepartments(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_departments",
		Description: "List all available hospital departments.",
		Params:      []Param{},
		Handler: func(ctx context.Context, args Args) (any, error) {
			deps, err := d.store.Departments(ctx)
			if err != nil {
				return nil, faults.Store("list departments", err)
			}
			names := make([]string, 0, len(deps))
			for _, dep := range deps {
				names = append(names, dep.Name)
			}
			return names, nil
		},
	}
}

func opGetDoctors(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_doctors",
		Description: "List doctors, optionally filtered by department. Patients can only see doctor names and departments.",
		Params: []Param{
			{Name: "department", Type: "string", Description: "Department name filter, partial match"},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			docs, err := d.store.Doctors(ctx, args.OptionalString("department"))
			if err != nil {
				return nil, faults.Store("list doctors", err)
			}
			out := make([]map[string]any, 0, len(docs))
			for _, doc := range docs {
				out = append(out, doctorView(doc))
			}
			return out, nil
		},
	}
}

func opGetDoctorSchedule(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_doctor_schedule",
		Description: "Get the upcoming OPD schedule windows for a doctor.",
		Params: []Param{
			{Name: "doctor_id", Type: "integer", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			doctorID, err := args.Int64("doctor_id")
			if err != nil {
				return nil, err
			}
			windows, err := d.store.WindowsForDoctor(ctx, doctorID)
			if err != nil {
				return nil, faults.Store("load schedule", err)
			}
			out := make([]map[string]any, 0, len(windows))
			for _, w := range windows {
				out = append(out, windowView(w))
			}
			return out, nil
		},
	}
}

func opGetMyProfile(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "get_my_profile",
		Description: "Get your own profile details. Use this to find out who you are talking to.",
		Params:      []Param{},
		Handler: func(ctx context.Context, args Args) (any, error) {
			switch id.Role {
			case policy.RolePatient:
				if id.PatientID == nil {
					return nil, faults.NotFound("profile not found")
				}
				p, err := d.patientByID(ctx, *id.PatientID)
				if err != nil {
					return nil, err
				}
				return patientView(*p), nil

			case policy.RoleDoctor:
				if id.DoctorID == nil {
					return nil, faults.NotFound("profile not found")
				}
				doc, err := d.store.DoctorByID(ctx, *id.DoctorID)
				if err != nil {
					if errors.Is(err, hospital.ErrDoctorNotFound) {
						return nil, faults.NotFound("profile not found")
					}
					return nil, faults.Store("load doctor", err)
				}
				return doctorView(*doc), nil

			default:
				return map[string]any{"name": "Administrator", "role": "admin"}, nil
			}
		},
	}
}

func opSearchKnowledge(d *Dispatcher, id policy.Identity) Operation {
	return Operation{
		Name:        "search_knowledge",
		Description: "Search the hospital knowledge base for general info (doctors, departments, schedule windows).",
		Params: []Param{
			{Name: "query", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			query, err := args.String("query")
			if err != nil {
				return nil, err
			}
			snippets, err := d.knowledge.Search(ctx, query, 2)
			if err != nil {
				return nil, faults.Store("search knowledge base", err)
			}
			if len(snippets) == 0 {
				return "No information found in the knowledge base.", nil
			}
			return strings.Join(snippets, "\n---\n"), nil
		},
	}
}
