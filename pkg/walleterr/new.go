package walleterr

import (
	"strings"
	"time"
)

// Default retry budgets per strategy.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultWaitDelay     = 5 * time.Second
)

// Option configures a ModalError built with New.
type Option func(*ModalError)

// WithCause attaches the original value.
func WithCause(cause any) Option {
	return func(e *ModalError) { e.Cause = cause }
}

// WithClassification sets the root-cause classification.
func WithClassification(c Classification) Option {
	return func(e *ModalError) { e.Classification = c }
}

// WithRecovery sets an explicit strategy and retry budget.
func WithRecovery(s RecoveryStrategy, maxRetries int, delay time.Duration) Option {
	return func(e *ModalError) {
		e.RecoveryStrategy = s
		e.MaxRetries = maxRetries
		e.RetryDelay = delay
	}
}

// WithData attaches structured context.
func WithData(key string, value any) Option {
	return func(e *ModalError) {
		if e.Data == nil {
			e.Data = make(map[string]any)
		}
		e.Data[key] = value
	}
}

// New builds a well-formed ModalError. Missing message, unknown category and
// missing classification are filled in; when no strategy is given it is
// derived from the classification.
func New(code string, category Category, message string, opts ...Option) *ModalError {
	e := &ModalError{
		Code:     code,
		Category: category,
		Message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return normalize(e)
}

func normalize(e *ModalError) *ModalError {
	if e.Code == "" {
		e.Code = CodeUnknown
	}
	if !e.Category.Valid() {
		e.Category = CategoryGeneral
	}
	if !e.Classification.Valid() {
		e.Classification = ClassUnknown
	}
	if e.Message == "" {
		e.Message = messageForCode(e.Code)
	}
	if e.RecoveryStrategy == "" {
		e.RecoveryStrategy = StrategyFor(e.Classification)
		e.MaxRetries, e.RetryDelay = budgetFor(e.RecoveryStrategy)
	}
	return e
}

// StrategyFor returns the default recovery strategy for a classification.
func StrategyFor(c Classification) RecoveryStrategy {
	switch c {
	case ClassTemporary:
		return RecoveryWaitAndRetry
	case ClassNetwork, ClassProvider:
		return RecoveryRetry
	case ClassPermission:
		return RecoveryManualAction
	default:
		return RecoveryNone
	}
}

func budgetFor(s RecoveryStrategy) (int, time.Duration) {
	switch s {
	case RecoveryRetry:
		return DefaultRetryAttempts, DefaultRetryDelay
	case RecoveryWaitAndRetry:
		return DefaultRetryAttempts, DefaultWaitDelay
	default:
		return 0, 0
	}
}

func messageForCode(code string) string {
	return strings.ReplaceAll(code, "_", " ")
}

// IsRecoverable reports whether err carries a strategy other than none.
// Non-ModalError values are classified first.
func IsRecoverable(err error) bool {
	me := Classify(err)
	if me == nil {
		return false
	}
	return me.Strategy() != RecoveryNone
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func InvalidState(message string, opts ...Option) *ModalError {
	opts = append([]Option{WithClassification(ClassPermanent)}, opts...)
	return New(CodeInvalidState, CategoryGeneral, message, opts...)
}

// Cancelled reports an operation superseded by a disconnect or context cancellation.
func Cancelled(message string, opts ...Option) *ModalError {
	opts = append([]Option{WithClassification(ClassPermanent)}, opts...)
	return New(CodeCancelled, CategoryUser, message, opts...)
}

// Validation reports malformed input.
func Validation(code, message string, opts ...Option) *ModalError {
	opts = append([]Option{WithClassification(ClassPermanent)}, opts...)
	return New(code, CategoryValidation, message, opts...)
}
