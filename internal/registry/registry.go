package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	apperrors "consultbooking/internal/errors"
)

type Skill string

// Worker is a technician as known to this service. The backend does not
// expose skills, so the mapping is maintained in the registry file.
type Worker struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Skills []Skill `json:"skills"`
}

// ServiceType carries the identifiers needed to create a job in the
// backend plus the skills a worker must have to perform it.
type ServiceType struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	RequiredSkills    []Skill `json:"required_skills"`
	JobTypeID         int64   `json:"job_type_id"`
	BusinessUnitID    int64   `json:"business_unit_id"`
	CampaignID        int64   `json:"campaign_id"`
	ProductCode       string  `json:"product_code"`
	ProductPriceCents int64   `json:"product_price_cents"`
}

type registryFile struct {
	DefaultSkills    []Skill       `json:"default_skills"`
	FallbackWorkerID int64         `json:"fallback_worker_id"`
	Workers          []Worker      `json:"workers"`
	ServiceTypes     []ServiceType `json:"service_types"`
}

// Registry is the immutable worker/skill table loaded once at process
// start. Changing it requires a reload, there is no runtime write path.
type Registry struct {
	workers          map[int64]Worker
	serviceTypes     map[string]ServiceType
	defaultSkills    []Skill
	fallbackWorkerID int64
}

func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	var rf registryFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	return New(rf.Workers, rf.ServiceTypes, rf.DefaultSkills, rf.FallbackWorkerID)
}

func New(workers []Worker, serviceTypes []ServiceType, defaultSkills []Skill, fallbackWorkerID int64) (*Registry, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("registry has no workers")
	}
	r := &Registry{
		workers:          make(map[int64]Worker, len(workers)),
		serviceTypes:     make(map[string]ServiceType, len(serviceTypes)),
		defaultSkills:    defaultSkills,
		fallbackWorkerID: fallbackWorkerID,
	}
	for _, w := range workers {
		if w.ID == 0 {
			return nil, fmt.Errorf("registry worker %q has no id", w.Name)
		}
		r.workers[w.ID] = w
	}
	for _, st := range serviceTypes {
		if st.ID == "" {
			return nil, fmt.Errorf("registry service type %q has no id", st.Name)
		}
		r.serviceTypes[st.ID] = st
	}
	return r, nil
}

func (r *Registry) Worker(id int64) (Worker, bool) {
	w, ok := r.workers[id]
	return w, ok
}

func (r *Registry) ServiceType(id string) (ServiceType, error) {
	st, ok := r.serviceTypes[id]
	if !ok {
		return ServiceType{}, apperrors.NewNotFoundError("service_type", "service type %q is not configured", id)
	}
	return st, nil
}

func (r *Registry) FallbackWorkerID() int64 {
	return r.fallbackWorkerID
}

// EligibleWorkers returns the workers whose skills overlap the service
// type's required skills. A service type with no required skills falls back
// to the registry's default skill set. The result is ordered by worker id
// so callers see a stable worker order.
func (r *Registry) EligibleWorkers(serviceTypeID string) ([]Worker, error) {
	st, err := r.ServiceType(serviceTypeID)
	if err != nil {
		return nil, err
	}
	required := st.RequiredSkills
	if len(required) == 0 {
		required = r.defaultSkills
	}

	var eligible []Worker
	for _, w := range r.workers {
		if skillsOverlap(w.Skills, required) {
			eligible = append(eligible, w)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}

func skillsOverlap(have, want []Skill) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
