// Package tracker holds the per-account state machine of one submission.
//
// Every account starts pending, moves to loading when its provider request is
// dispatched, and ends in exactly one of success, error or reconnect. Terminal
// states are final for the lifetime of the Tracker.
package tracker

import (
	"fmt"
	"sync"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
)

// Update describes a terminal transition.
type Update struct {
	Status             postfan.AccountStatus
	Message            string
	ProviderRef        string
	ErrorCode          string
	Pending            bool
	InvalidMediaFormat bool
}

// TransitionError reports a transition the state machine does not allow.
type TransitionError struct {
	Key  postfan.AccountKey
	From postfan.AccountStatus
	To   postfan.AccountStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("account %s: cannot move from %s to %s", e.Key, e.From, e.To)
}

// UnknownAccountError is returned for keys that were not part of the submission.
type UnknownAccountError struct {
	Key postfan.AccountKey
}

func (e UnknownAccountError) Error() string {
	return fmt.Sprintf("account %s is not part of this submission", e.Key)
}

// Tracker maps each requested account to its result. Safe for concurrent use
// by the per-provider fan-out goroutines.
type Tracker struct {
	mu      sync.Mutex
	order   []postfan.AccountKey
	results map[postfan.AccountKey]*postfan.AccountResult
}

// New starts every target in pending. Duplicate targets collapse into one entry.
func New(targets []postfan.TargetAccount) *Tracker {
	t := &Tracker{results: make(map[postfan.AccountKey]*postfan.AccountResult, len(targets))}
	for _, target := range targets {
		key := target.Key()
		if _, ok := t.results[key]; ok {
			continue
		}
		t.order = append(t.order, key)
		t.results[key] = &postfan.AccountResult{
			AccountID:   target.AccountID,
			Platform:    target.Platform,
			DisplayName: target.DisplayName,
			Status:      postfan.StatusPending,
		}
	}
	return t
}

func allowed(from, to postfan.AccountStatus) bool {
	switch from {
	case postfan.StatusPending:
		// A batch can be aborted before its request is dispatched.
		return to == postfan.StatusLoading || to == postfan.StatusError
	case postfan.StatusLoading:
		return to.Terminal()
	default:
		return false
	}
}

// Dispatch moves the given accounts from pending to loading.
func (t *Tracker) Dispatch(keys ...postfan.AccountKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		if err := t.move(key, postfan.StatusLoading, nil); err != nil {
			return err
		}
	}
	return nil
}

// Resolve applies a terminal update to one account.
func (t *Tracker) Resolve(key postfan.AccountKey, u Update) error {
	if !u.Status.Terminal() {
		return fmt.Errorf("account %s: %s is not a terminal status", key, u.Status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(key, u.Status, &u)
}

func (t *Tracker) move(key postfan.AccountKey, to postfan.AccountStatus, u *Update) error {
	r, ok := t.results[key]
	if !ok {
		return UnknownAccountError{Key: key}
	}
	if !allowed(r.Status, to) {
		return TransitionError{Key: key, From: r.Status, To: to}
	}
	logutil.Debug("account status", "account", key.String(), "from", r.Status, "to", to)
	r.Status = to
	if u != nil {
		r.Message = u.Message
		r.ProviderRef = u.ProviderRef
		r.ErrorCode = u.ErrorCode
		r.Pending = u.Pending
		r.InvalidMediaFormat = u.InvalidMediaFormat
	}
	return nil
}

// FailUnresolved moves every pending or loading account of platform to error
// with message and returns how many were changed.
func (t *Tracker) FailUnresolved(platform postfan.Platform, message string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, key := range t.order {
		if key.Platform != platform || t.results[key].Status.Terminal() {
			continue
		}
		if t.results[key].Status == postfan.StatusPending {
			_ = t.move(key, postfan.StatusLoading, nil)
		}
		_ = t.move(key, postfan.StatusError, &Update{Status: postfan.StatusError, Message: message})
		n++
	}
	return n
}

// Status returns the current status of key.
func (t *Tracker) Status(key postfan.AccountKey) (postfan.AccountStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[key]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// Keys returns the accounts of platform in request order.
func (t *Tracker) Keys(platform postfan.Platform) []postfan.AccountKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []postfan.AccountKey
	for _, key := range t.order {
		if key.Platform == platform {
			keys = append(keys, key)
		}
	}
	return keys
}

// Results returns a copy of the results for platform in request order.
func (t *Tracker) Results(platform postfan.Platform) []postfan.AccountResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []postfan.AccountResult
	for _, key := range t.order {
		if key.Platform == platform {
			out = append(out, *t.results[key])
		}
	}
	return out
}

// ByPlatform returns copies of every result grouped by platform.
func (t *Tracker) ByPlatform() map[postfan.Platform][]postfan.AccountResult {
	out := make(map[postfan.Platform][]postfan.AccountResult, len(postfan.Platforms))
	for _, p := range postfan.Platforms {
		out[p] = t.Results(p)
		if out[p] == nil {
			out[p] = []postfan.AccountResult{}
		}
	}
	return out
}

// Settled reports whether every account is in a terminal state.
func (t *Tracker) Settled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.results {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// AllSucceeded reports whether every account ended in success.
func (t *Tracker) AllSucceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.results) == 0 {
		return false
	}
	for _, r := range t.results {
		if r.Status != postfan.StatusSuccess {
			return false
		}
	}
	return true
}

// Len returns the number of tracked accounts.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
