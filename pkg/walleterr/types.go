package walleterr

import (
	"fmt"
	"time"
)

// Category is the user-facing grouping of an error.
type Category string

const (
	CategoryUser       Category = "user"
	CategoryWallet     Category = "wallet"
	CategoryNetwork    Category = "network"
	CategoryGeneral    Category = "general"
	CategoryValidation Category = "validation"
	CategorySandbox    Category = "sandbox"
)

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryUser, CategoryWallet, CategoryNetwork, CategoryGeneral, CategoryValidation, CategorySandbox:
		return true
	}
	return false
}

// Classification is the root cause assigned to an error.
type Classification string

const (
	ClassNetwork    Classification = "network"
	ClassPermission Classification = "permission"
	ClassProvider   Classification = "provider"
	ClassTemporary  Classification = "temporary"
	ClassPermanent  Classification = "permanent"
	ClassUnknown    Classification = "unknown"
)

// Valid reports whether c is one of the fixed classifications.
func (c Classification) Valid() bool {
	switch c {
	case ClassNetwork, ClassPermission, ClassProvider, ClassTemporary, ClassPermanent, ClassUnknown:
		return true
	}
	return false
}

// RecoveryStrategy tells the caller how to recover.
type RecoveryStrategy string

const (
	RecoveryRetry        RecoveryStrategy = "retry"
	RecoveryWaitAndRetry RecoveryStrategy = "wait_and_retry"
	RecoveryManualAction RecoveryStrategy = "manual_action"
	RecoveryNone         RecoveryStrategy = "none"
)

// Normalize maps the absent strategy to RecoveryNone.
func (s RecoveryStrategy) Normalize() RecoveryStrategy {
	if s == "" {
		return RecoveryNone
	}
	return s
}

// Error codes produced by walletmesh.
const (
	CodeUserRejected       = "user_rejected"
	CodeSessionExpired     = "session_expired"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidState       = "invalid_state"
	CodeCancelled          = "cancelled"
	CodeWalletNotFound     = "wallet_not_found"
	CodeConnectionTimeout  = "connection_timeout"
	CodeConnectionFailed   = "connection_failed"
	CodeWalletDisconnected = "wallet_disconnected"
	CodeChainNotSupported  = "chain_not_supported"
	CodeReconnectExhausted = "reconnect_exhausted"
	CodeSessionNotFound    = "session_not_found"
	CodeInvalidParams      = "invalid_params"
	CodeNetworkError       = "network_error"
	CodeUnknown            = "unknown_error"
)

// ModalError is the stable, typed error surfaced by walletmesh.
type ModalError struct {
	Code             string           `json:"code"`
	Category         Category         `json:"category"`
	Classification   Classification   `json:"classification"`
	Message          string           `json:"message"`
	RecoveryStrategy RecoveryStrategy `json:"recoveryStrategy,omitempty"`
	MaxRetries       int              `json:"maxRetries,omitempty"`
	RetryDelay       time.Duration    `json:"retryDelay,omitempty"`
	Data             map[string]any   `json:"data,omitempty"`

	// Cause is the original value this error was derived from.
	Cause any `json:"-"`
}

// Error implements error.
func (e *ModalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause when it is an error.
func (e *ModalError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Is matches another ModalError by code, so sentinels such as
// ErrInvalidState work with errors.Is.
func (e *ModalError) Is(target error) bool {
	t, ok := target.(*ModalError)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// Strategy returns the recovery strategy with absence mapped to RecoveryNone.
func (e *ModalError) Strategy() RecoveryStrategy {
	return e.RecoveryStrategy.Normalize()
}

// Valid reports whether e satisfies the ModalError shape: non-empty code and
// message and a known category.
func (e *ModalError) Valid() bool {
	return e != nil && e.Code != "" && e.Message != "" && e.Category.Valid()
}

// Sentinels for errors.Is checks.
var (
	ErrUserRejected       = &ModalError{Code: CodeUserRejected}
	ErrInvalidState       = &ModalError{Code: CodeInvalidState}
	ErrCancelled          = &ModalError{Code: CodeCancelled}
	ErrWalletNotFound     = &ModalError{Code: CodeWalletNotFound}
	ErrConnectionTimeout  = &ModalError{Code: CodeConnectionTimeout}
	ErrChainNotSupported  = &ModalError{Code: CodeChainNotSupported}
	ErrReconnectExhausted = &ModalError{Code: CodeReconnectExhausted}
	ErrSessionNotFound    = &ModalError{Code: CodeSessionNotFound}
	ErrSessionExpired     = &ModalError{Code: CodeSessionExpired}
)
