package tx

import (
	"context"
	"sync"
	"time"
)

// fakeSession records every call made by the transaction layer.
type fakeSession struct {
	mu sync.Mutex

	begins    int
	commits   int
	rollbacks int
	closes    int
	timeout   time.Duration

	beginErr    error
	commitErr   error
	rollbackErr error
	closeErr    error
}

func (s *fakeSession) Begin(_ context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	s.timeout = timeout
	return s.beginErr
}

func (s *fakeSession) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return s.commitErr
}

func (s *fakeSession) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return s.rollbackErr
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

// fakeEngine hands out sessions built by newSession.
type fakeEngine struct {
	mu         sync.Mutex
	sessions   []*fakeSession
	openErr    error
	closed     bool
	newSession func() *fakeSession
}

func (e *fakeEngine) OpenSession(context.Context) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openErr != nil {
		return nil, e.openErr
	}
	s := &fakeSession{}
	if e.newSession != nil {
		s = e.newSession()
	}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *fakeEngine) last() *fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

func (e *fakeEngine) opened() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func newTestManager(engine *fakeEngine) *Manager {
	return NewManager(NewAdapter(engine, Config{TransactionTimeout: 5 * time.Second}))
}
