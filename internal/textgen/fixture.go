package textgen

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// #endregion

// #region fixture-types

// Exchange is one recorded request/response pair.
type Exchange struct {
	Role   Role   `json:"role"`
	Key    string `json:"key,omitempty"`
	Output string `json:"output"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Fixture is the top-level JSON structure for a recorded run.
type Fixture struct {
	Description string     `json:"description"`
	Exchanges   []Exchange `json:"exchanges"`
}

// ErrFixtureExhausted means a replay ran out of exchanges for a role.
var ErrFixtureExhausted = errors.New("textgen: fixture exhausted")

// #endregion

// #region load-save

// LoadFixture reads a fixture from a JSON file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	for i, ex := range f.Exchanges {
		if !ex.Role.Valid() {
			return Fixture{}, fmt.Errorf("fixture exchange %d: unknown role %q", i, ex.Role)
		}
	}
	return f, nil
}

// SaveFixture writes a fixture as indented JSON.
func SaveFixture(path string, f Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// exchangeKey is the stable part of a request used to pair replies with
// requests when sibling calls run concurrently.
func exchangeKey(req Request) string {
	if t, ok := req.Input["title"].(string); ok {
		return t
	}
	return ""
}

// #endregion

// #region recording

// Recording forwards to another service and keeps every exchange.
type Recording struct {
	next Service

	mu        sync.Mutex
	exchanges []Exchange
}

// NewRecording wraps next.
func NewRecording(next Service) *Recording {
	return &Recording{next: next}
}

// Generate forwards the call and records its outcome.
func (r *Recording) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := r.next.Generate(ctx, req)
	ex := Exchange{Role: req.Role, Key: exchangeKey(req), Output: resp.Output, OK: resp.OK}
	if err != nil {
		if ctx.Err() != nil {
			return resp, err
		}
		ex.Error = err.Error()
	}
	r.mu.Lock()
	r.exchanges = append(r.exchanges, ex)
	r.mu.Unlock()
	return resp, err
}

// Fixture returns everything recorded so far.
func (r *Recording) Fixture(description string) Fixture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Fixture{Description: description, Exchanges: append([]Exchange(nil), r.exchanges...)}
}

// #endregion

// #region replay

// ReplayService answers from a fixture. Per role, an exchange whose key
// matches the request is preferred; otherwise exchanges are served in order.
type ReplayService struct {
	mu     sync.Mutex
	queues map[Role][]Exchange
}

// NewReplayService queues the fixture's exchanges by role.
func NewReplayService(f Fixture) *ReplayService {
	q := make(map[Role][]Exchange)
	for _, ex := range f.Exchanges {
		q[ex.Role] = append(q[ex.Role], ex)
	}
	return &ReplayService{queues: q}
}

// Generate pops the next matching exchange for the request's role.
func (s *ReplayService) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[req.Role]
	if len(queue) == 0 {
		return Response{}, fmt.Errorf("%w: role %s", ErrFixtureExhausted, req.Role)
	}
	idx := 0
	if key := exchangeKey(req); key != "" {
		for i, ex := range queue {
			if ex.Key == key {
				idx = i
				break
			}
		}
	}
	ex := queue[idx]
	s.queues[req.Role] = append(queue[:idx:idx], queue[idx+1:]...)

	if ex.Error != "" {
		return Response{}, errors.New(ex.Error)
	}
	return Response{Output: ex.Output, OK: ex.OK}, nil
}

// Remaining returns how many exchanges are left for a role.
func (s *ReplayService) Remaining(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[role])
}

// #endregion
