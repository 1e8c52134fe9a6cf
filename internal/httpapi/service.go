package httpapi

import (
	"instructd/internal/session"
	"instructd/pkg/types"
)

// managerService adapts the session manager to the Service interface.
type managerService struct {
	m *session.Manager
}

// WrapManager exposes a session manager as the HTTP service.
func WrapManager(m *session.Manager) Service { return managerService{m: m} }

func (s managerService) Submit(req types.GenerateRequest) (Stream, error) {
	sess, err := s.m.Submit(req)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s managerService) Cancel(id string) error { return s.m.Cancel(id) }

func (s managerService) ModelInfo() types.ModelInfo { return s.m.ModelInfo() }

func (s managerService) Status() types.StatusResponse { return s.m.Status() }

func (s managerService) Ready() bool { return s.m.Ready() }
