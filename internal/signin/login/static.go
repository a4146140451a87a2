package login

import (
	"context"
	"sync"
)

// Call records one invocation of StaticService.Login.
type Call struct {
	Credentials Credentials
	CallbackURL string
}

// StaticService returns a fixed outcome and records every call. It backs tests
// and previews where no authentication API is available.
type StaticService struct {
	Outcome          *Outcome
	FederatedOutcome *Outcome
	Err              error

	mu             sync.Mutex
	calls          []Call
	federatedCalls []FederatedRequest
}

// NewStaticService constructs a StaticService answering with outcome.
func NewStaticService(outcome *Outcome) *StaticService {
	return &StaticService{Outcome: outcome}
}

// Login records the call and returns the configured outcome or error.
func (s *StaticService) Login(_ context.Context, creds Credentials, callbackURL string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Credentials: creds, CallbackURL: callbackURL})

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Outcome == nil {
		return &Outcome{}, nil
	}
	copied := *s.Outcome
	return &copied, nil
}

// SetOutcome swaps the outcome returned by later calls.
func (s *StaticService) SetOutcome(outcome *Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outcome = outcome
}

// LoginFederated records the call and returns the federated outcome, falling back to Outcome.
func (s *StaticService) LoginFederated(_ context.Context, req FederatedRequest) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.federatedCalls = append(s.federatedCalls, req)

	if s.Err != nil {
		return nil, s.Err
	}
	outcome := s.FederatedOutcome
	if outcome == nil {
		outcome = s.Outcome
	}
	if outcome == nil {
		return &Outcome{}, nil
	}
	copied := *outcome
	return &copied, nil
}

// Calls returns a copy of the recorded Login calls.
func (s *StaticService) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// FederatedCalls returns a copy of the recorded LoginFederated calls.
func (s *StaticService) FederatedCalls() []FederatedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FederatedRequest(nil), s.federatedCalls...)
}
