// Package oauth completes a Google sign-in after the provider redirects back
// to the portal's origin.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/existflow/learnportal/internal/logger"
)

const (
	// SettleDelay separates detection from processing so a host that is
	// still being set up does not start the exchange mid-construction.
	SettleDelay = 150 * time.Millisecond
	// PropagationDelay separates the terminal result from its delivery so the
	// new session is visible to every observer before the URL is rewritten.
	PropagationDelay = 100 * time.Millisecond
)

// State of a handshake
type State int

const (
	Idle State = iota
	Detected
	Processing
	Succeeded
	Failed
	// Dismissed means a session appeared before processing started
	Dismissed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Detected:
		return "Detected"
	case Processing:
		return "Processing"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Dismissed:
		return "Dismissed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Dismissed
}

type event int

const (
	evDetect event = iota
	evBegin
	evDismiss
	evSucceed
	evFail
)

func (e event) String() string {
	return [...]string{"detect", "begin", "dismiss", "succeed", "fail"}[e]
}

// ErrIllegalTransition is returned for an edge the state machine does not have
var ErrIllegalTransition = errors.New("illegal handshake transition")

// transition is the only place a handshake changes state
func transition(s State, e event) (State, error) {
	switch {
	case s == Idle && e == evDetect:
		return Detected, nil
	case s == Detected && e == evBegin:
		return Processing, nil
	case s == Detected && e == evDismiss:
		return Dismissed, nil
	case s == Processing && e == evSucceed:
		return Succeeded, nil
	case s == Processing && e == evFail:
		return Failed, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
}

// Exchanger trades an authorization code for a session
type Exchanger interface {
	HandleGoogleCallback(ctx context.Context, code, state string) error
}

// Sessions reports whether a user is already logged in
type Sessions interface {
	HasSession() bool
}

// ProviderError is the failure reported by the provider in the redirect
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("Google sign-in failed: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("Google sign-in failed: %s", e.Code)
}

// ErrMissingCode is the failure for a redirect without an authorization code
var ErrMissingCode = errors.New("No authorization code received")

// Outcome is what a handshake signals to its host
type Outcome struct {
	State State
	Err   error
	// Skipped is set when another Run already owns this handshake
	Skipped bool
	// Canceled is set when ctx ended before the result could be delivered
	Canceled bool
}

// Handshake processes one OAuth redirect at most once
type Handshake struct {
	exchanger Exchanger
	sessions  Sessions
	settle    time.Duration
	propagate time.Duration

	mu     sync.Mutex
	state  State
	params url.Values
	err    error
}

// HandshakeOption configures a Handshake
type HandshakeOption func(*Handshake)

// WithDelays overrides SettleDelay and PropagationDelay
func WithDelays(settle, propagate time.Duration) HandshakeOption {
	return func(h *Handshake) {
		h.settle = settle
		h.propagate = propagate
	}
}

// NewHandshake creates an Idle handshake
func NewHandshake(exchanger Exchanger, sessions Sessions, opts ...HandshakeOption) *Handshake {
	h := &Handshake{
		exchanger: exchanger,
		sessions:  sessions,
		settle:    SettleDelay,
		propagate: PropagationDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// HasProcessed reports whether processing has started. It never goes back to false.
func (h *Handshake) HasProcessed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == Processing || h.state == Succeeded || h.state == Failed
}

// Detect moves an Idle handshake to Detected when u is an OAuth redirect and
// nobody is logged in. It reports whether the handshake is now Detected.
func (h *Handshake) Detect(u *url.URL) bool {
	q := u.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		return false
	}
	if h.sessions.HasSession() {
		logger.Debug("OAuth redirect ignored, session already present")
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := transition(h.state, evDetect)
	if err != nil {
		return h.state == Detected
	}
	h.state = next
	h.params = q
	logger.Debug("OAuth redirect detected")
	return true
}

// Run waits SettleDelay, performs the exchange, waits PropagationDelay and
// returns the outcome. Only the first Run of a handshake exchanges the code.
func (h *Handshake) Run(ctx context.Context) Outcome {
	if !sleep(ctx, h.settle) {
		return Outcome{State: h.State(), Canceled: true}
	}

	h.mu.Lock()
	if h.state != Detected {
		out := Outcome{State: h.state, Err: h.err, Skipped: true}
		h.mu.Unlock()
		return out
	}
	ev := evBegin
	if h.sessions.HasSession() {
		ev = evDismiss
	}
	next, err := transition(h.state, ev)
	if err != nil {
		h.mu.Unlock()
		return Outcome{State: h.state, Err: err, Skipped: true}
	}
	h.state = next
	params := h.params
	h.mu.Unlock()

	if next == Dismissed {
		logger.Info("OAuth redirect dismissed, session already present")
		return Outcome{State: Dismissed}
	}

	procErr := h.process(ctx, params)

	h.mu.Lock()
	ev = evSucceed
	if procErr != nil {
		ev = evFail
	}
	final, err := transition(h.state, ev)
	if err != nil {
		h.mu.Unlock()
		return Outcome{State: h.state, Err: err}
	}
	h.state = final
	h.err = procErr
	h.mu.Unlock()

	if procErr != nil {
		logger.Warn("OAuth handshake failed", logger.Err(procErr))
	} else {
		logger.Info("OAuth handshake succeeded")
	}

	if !sleep(ctx, h.propagate) {
		return Outcome{State: final, Err: procErr, Canceled: true}
	}
	return Outcome{State: final, Err: procErr}
}

func (h *Handshake) process(ctx context.Context, q url.Values) error {
	if code := q.Get("error"); code != "" {
		return &ProviderError{Code: code, Description: q.Get("error_description")}
	}
	code := q.Get("code")
	if code == "" {
		return ErrMissingCode
	}
	return h.exchanger.HandleGoogleCallback(ctx, code, q.Get("state"))
}

// sleep waits d or until ctx ends. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// scrubbed are the query parameters a provider redirect may add to the origin
var scrubbed = []string{"code", "state", "error", "error_description", "scope", "authuser", "prompt"}

// ScrubURL returns a copy of u without OAuth redirect parameters
func ScrubURL(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	for _, key := range scrubbed {
		q.Del(key)
	}
	out.RawQuery = q.Encode()
	return &out
}
