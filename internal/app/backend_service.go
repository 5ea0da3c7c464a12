package app

import (
	"fmt"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
)

// DefaultBackends is the catalogue seeded into an empty database.
var DefaultBackends = []model.Backend{
	{Name: "ibm_brisbane", Provider: "IBM", Qubits: 127, Status: model.BackendOnline, AvgWaitSeconds: 240, ErrorRate: 0.012},
	{Name: "ibm_kyoto", Provider: "IBM", Qubits: 127, Status: model.BackendMaintenance, AvgWaitSeconds: 600, ErrorRate: 0.015},
	{Name: "ionq_aria", Provider: "IonQ", Qubits: 25, Status: model.BackendOnline, AvgWaitSeconds: 900, ErrorRate: 0.004},
	{Name: "rigetti_ankaa", Provider: "Rigetti", Qubits: 84, Status: model.BackendOffline, AvgWaitSeconds: 0, ErrorRate: 0.021},
	{Name: "qasm_simulator", Provider: "Local", Qubits: 32, Simulator: true, Status: model.BackendOnline, AvgWaitSeconds: 2},
}

type BackendService struct {
	backends *repository.BackendRepository
}

func NewBackendService(backends *repository.BackendRepository) *BackendService {
	return &BackendService{backends: backends}
}

func (s *BackendService) Seed() error {
	seed := make([]model.Backend, len(DefaultBackends))
	copy(seed, DefaultBackends)
	return s.backends.EnsureSeeded(seed)
}

func (s *BackendService) List() ([]model.Backend, error) {
	return s.backends.List()
}

func (s *BackendService) Get(id uint) (*model.Backend, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	backend, err := s.backends.GetByID(id)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrBackendNotFound
	}
	return backend, nil
}

func (s *BackendService) UpdateStatus(id uint, status model.BackendStatus) (*model.Backend, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown backend status %q", ErrInvalidInput, status)
	}
	backend, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.backends.UpdateStatus(id, status); err != nil {
		return nil, err
	}
	backend.Status = status
	return backend, nil
}
