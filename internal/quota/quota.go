// Package quota tracks the daily budget of external provider calls.
//
// The budget is a soft limit: calls are serialised inside one process, but
// several processes sharing a store may overshoot it slightly.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kovalyov-valentin/news-retriever/internal/kvstore"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const (
	stateKey     = "quota"
	window       = 24 * time.Hour
	defaultLimit = 100
)

var errCorruptState = errors.New("quota: corrupt state")

type Option func(*Tracker)

func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker counts external calls against a daily limit.
type Tracker struct {
	kv     kvstore.Store
	limit  int
	clock  func() time.Time
	logger *slog.Logger

	mu sync.Mutex
	// last is the most recent state read or written, used when the store is unreachable.
	last *model.QuotaState
}

func New(kv kvstore.Store, dailyLimit int, options ...Option) *Tracker {
	if dailyLimit < 0 {
		dailyLimit = defaultLimit
	}

	t := &Tracker{
		kv:     kv,
		limit:  dailyLimit,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(t)
	}

	return t
}

// TrackRequest reports whether one more external call may proceed and, if so, counts it.
// A call that would exceed the limit is rejected and not counted.
func (t *Tracker) TrackRequest(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	state, ok := t.current(ctx, now)
	if !ok {
		return false
	}

	if state.Count >= t.limit {
		return false
	}

	state.Count++
	t.persist(ctx, state)

	return true
}

// Status returns usage without side effects.
func (t *Tracker) Status(ctx context.Context) model.QuotaStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	state, err := t.read(ctx)
	switch {
	case err == nil:
	case !errors.Is(err, kvstore.ErrNotFound) && t.last != nil:
		state = *t.last
	default:
		state = model.QuotaState{ResetAt: now.Add(window)}
	}
	if now.After(state.ResetAt) {
		state = model.QuotaState{ResetAt: nextReset(state.ResetAt, now)}
	}

	remaining := t.limit - state.Count
	if remaining < 0 {
		remaining = 0
	}

	return model.QuotaStatus{
		Used:         state.Count,
		Limit:        t.limit,
		Remaining:    remaining,
		ResetInHours: state.ResetAt.Sub(now).Hours(),
	}
}

// Reset drops the stored state; the next call starts a new window.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.Remove(ctx, stateKey); err != nil {
		return err
	}
	t.last = nil

	return nil
}

// current loads the state, creating or rolling the window over as needed.
// It reports false when the state cannot be determined and the call must be denied.
func (t *Tracker) current(ctx context.Context, now time.Time) (model.QuotaState, bool) {
	state, err := t.read(ctx)
	switch {
	case err == nil:
		t.remember(state)
	case errors.Is(err, kvstore.ErrNotFound):
		return model.QuotaState{ResetAt: now.Add(window)}, true
	case t.last != nil:
		t.logger.WarnContext(ctx, "quota read failed, using last known state", "error", err)
		state = *t.last
	case errors.Is(err, errCorruptState):
		t.logger.WarnContext(ctx, "quota state unreadable, starting a new window", "error", err)
		return model.QuotaState{ResetAt: now.Add(window)}, true
	default:
		t.logger.WarnContext(ctx, "quota read failed, denying call", "error", err)
		return model.QuotaState{}, false
	}

	if now.After(state.ResetAt) {
		t.logger.InfoContext(ctx, "quota window reset", "used", state.Count, "limit", t.limit)
		return model.QuotaState{ResetAt: nextReset(state.ResetAt, now)}, true
	}

	return state, true
}

// read returns kvstore.ErrNotFound when no state has been stored yet.
func (t *Tracker) read(ctx context.Context) (model.QuotaState, error) {
	data, err := t.kv.Get(ctx, stateKey)
	if err != nil {
		return model.QuotaState{}, err
	}

	var state model.QuotaState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.QuotaState{}, fmt.Errorf("%w: %v", errCorruptState, err)
	}

	return state, nil
}

func (t *Tracker) persist(ctx context.Context, state model.QuotaState) {
	t.remember(state)

	data, err := json.Marshal(state)
	if err != nil {
		t.logger.ErrorContext(ctx, "quota encode state", "error", err)
		return
	}

	if err := t.kv.Set(ctx, stateKey, data); err != nil {
		t.logger.WarnContext(ctx, "quota persist failed", "error", err)
	}
}

func (t *Tracker) remember(state model.QuotaState) {
	t.last = &state
}

// nextReset advances resetAt by whole days until it lies after now.
func nextReset(resetAt, now time.Time) time.Time {
	for !resetAt.After(now) {
		resetAt = resetAt.Add(window)
	}
	return resetAt
}
