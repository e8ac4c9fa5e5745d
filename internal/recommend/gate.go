package recommend

import (
	"context"
	"errors"

	"github.com/NainishK/smartsubs/api/internal/model"
)

// ErrAccessRequired rejects an AI generation attempt while the gate is not
// approved. It is raised before any engine call is issued.
var ErrAccessRequired = errors.New("ai recommendations access not approved")

// AccessStore persists the per-user gate: none -> requested -> approved,
// one-directional.
type AccessStore interface {
	GetState(ctx context.Context, userID string) (model.AccessState, error)
	Request(ctx context.Context, userID string) (model.AccessState, error)
}

func (s *Streams) AccessState(ctx context.Context) (model.AccessState, error) {
	return s.access.GetState(ctx, s.userID)
}

// RequestAccess moves the gate from none to requested. From any other state
// it is a no-op returning the current state.
func (s *Streams) RequestAccess(ctx context.Context) (model.AccessState, error) {
	state, err := s.access.GetState(ctx, s.userID)
	if err != nil {
		return state, err
	}
	if state != model.AccessNone {
		return state, nil
	}
	return s.access.Request(ctx, s.userID)
}
