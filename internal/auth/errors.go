package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure
type Kind int

const (
	KindAuthFailed Kind = iota + 1
	KindVerificationRequired
	KindRegistrationFailed
	KindConfirmFailed
	KindResendFailed
	KindGoogleAuthURLFailed
	KindGoogleOAuthFailed
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailed:
		return "AuthFailed"
	case KindVerificationRequired:
		return "VerificationRequired"
	case KindRegistrationFailed:
		return "RegistrationFailed"
	case KindConfirmFailed:
		return "ConfirmFailed"
	case KindResendFailed:
		return "ResendFailed"
	case KindGoogleAuthURLFailed:
		return "GoogleAuthUrlFailed"
	case KindGoogleOAuthFailed:
		return "GoogleOAuthFailed"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is
var (
	ErrAuthFailed           = errors.New("authentication failed")
	ErrVerificationRequired = errors.New("verification required")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrConfirmFailed        = errors.New("confirmation failed")
	ErrResendFailed         = errors.New("resend failed")
	ErrGoogleAuthURLFailed  = errors.New("google auth url failed")
	ErrGoogleOAuthFailed    = errors.New("google oauth failed")
)

var sentinels = map[Kind]error{
	KindAuthFailed:           ErrAuthFailed,
	KindVerificationRequired: ErrVerificationRequired,
	KindRegistrationFailed:   ErrRegistrationFailed,
	KindConfirmFailed:        ErrConfirmFailed,
	KindResendFailed:         ErrResendFailed,
	KindGoogleAuthURLFailed:  ErrGoogleAuthURLFailed,
	KindGoogleOAuthFailed:    ErrGoogleOAuthFailed,
}

// Error is returned by every Manager operation that fails. Message is the
// backend's text when there was one, else a fixed per-operation fallback.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Detail is the message including the underlying cause, for logs
func (e *Error) Detail() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
}
