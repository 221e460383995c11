package walleterr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RPCCoder is implemented by provider errors carrying a numeric JSON-RPC or
// EIP-1193 code.
type RPCCoder interface {
	RPCCode() int
}

// Coder is implemented by errors carrying a string code.
type Coder interface {
	ErrorCode() string
}

// EIP-1193 provider error codes.
const (
	RPCUserRejected      = 4001
	RPCUnauthorized      = 4100
	RPCUnsupportedMethod = 4200
	RPCDisconnected      = 4900
	RPCChainDisconnected = 4901
	RPCUnrecognizedChain = 4902
)

var userRejectionPhrases = []string{
	"user rejected",
	"user denied",
	"user cancelled",
	"user canceled",
	"rejected by user",
	"request rejected",
}

var networkPhrases = []string{
	"network error",
	"failed to fetch",
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
}

// Classify converts v into a ModalError. A nil input yields nil.
//
// A valid *ModalError, or an error wrapping one, is returned unchanged.
// Otherwise known markers decide category and classification, the original
// value is kept as Cause, and a message is synthesized when absent. Anything
// unrecognized becomes general/unknown.
func Classify(v any) (out *ModalError) {
	if v == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = New(CodeUnknown, CategoryGeneral, fmt.Sprintf("unclassifiable error: %v", r), WithCause(v))
		}
	}()

	switch x := v.(type) {
	case *ModalError:
		if x == nil {
			return nil
		}
		if x.Valid() {
			return x
		}
		cp := *x
		return normalize(&cp)
	case ModalError:
		return Classify(&x)
	case error:
		return classifyError(x)
	case string:
		return classifyMessage(x, v)
	case map[string]any:
		return classifyObject(x)
	default:
		return New(CodeUnknown, CategoryGeneral, fmt.Sprintf("%v", v), WithCause(v))
	}
}

func classifyError(err error) *ModalError {
	var me *ModalError
	if errors.As(err, &me) && me != nil {
		return Classify(me)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return New(CodeCancelled, CategoryUser, "operation cancelled",
			WithClassification(ClassPermanent), WithCause(err))
	case errors.Is(err, context.DeadlineExceeded):
		return New(CodeConnectionTimeout, CategoryNetwork, "operation timed out",
			WithClassification(ClassTemporary), WithCause(err))
	}

	var coder Coder
	if errors.As(err, &coder) && coder.ErrorCode() == CodeSessionExpired {
		return New(CodeSessionExpired, CategoryWallet, "wallet session expired",
			WithClassification(ClassPermission), WithCause(err))
	}

	var rpc RPCCoder
	if errors.As(err, &rpc) {
		if me := classifyRPCCode(rpc.RPCCode(), err); me != nil {
			return me
		}
	}

	return classifyMessage(err.Error(), err)
}

func classifyRPCCode(code int, cause error) *ModalError {
	msg := cause.Error()
	switch code {
	case RPCUserRejected:
		return New(CodeUserRejected, CategoryUser, msg, WithClassification(ClassPermission), WithCause(cause))
	case RPCUnauthorized:
		return New(CodeUnauthorized, CategoryWallet, msg, WithClassification(ClassPermission), WithCause(cause))
	case RPCUnsupportedMethod:
		return New(CodeInvalidParams, CategoryWallet, msg, WithClassification(ClassProvider), WithCause(cause),
			WithRecovery(RecoveryNone, 0, 0))
	case RPCDisconnected, RPCChainDisconnected:
		return New(CodeWalletDisconnected, CategoryWallet, msg, WithClassification(ClassTemporary), WithCause(cause))
	case RPCUnrecognizedChain:
		return New(CodeChainNotSupported, CategoryValidation, msg, WithClassification(ClassPermanent), WithCause(cause))
	}
	return nil
}

func classifyMessage(msg string, cause any) *ModalError {
	lower := strings.ToLower(msg)
	if msg == "" {
		msg = "unknown error"
	}

	if strings.Contains(lower, CodeSessionExpired) || strings.Contains(lower, "session expired") {
		return New(CodeSessionExpired, CategoryWallet, msg, WithClassification(ClassPermission), WithCause(cause))
	}
	for _, p := range userRejectionPhrases {
		if strings.Contains(lower, p) {
			return New(CodeUserRejected, CategoryUser, msg, WithClassification(ClassPermission), WithCause(cause))
		}
	}
	for _, p := range networkPhrases {
		if strings.Contains(lower, p) {
			return New(CodeNetworkError, CategoryNetwork, msg, WithClassification(ClassNetwork), WithCause(cause))
		}
	}
	return New(CodeUnknown, CategoryGeneral, msg, WithClassification(ClassUnknown), WithCause(cause))
}

// classifyObject handles decoded JSON objects. Objects that already carry the
// ModalError shape are converted field by field.
func classifyObject(m map[string]any) *ModalError {
	code, _ := m["code"].(string)
	msg, _ := m["message"].(string)
	cat, _ := m["category"].(string)

	if code != "" && msg != "" && Category(cat).Valid() {
		e := &ModalError{Code: code, Category: Category(cat), Message: msg, Cause: m}
		if c, ok := m["classification"].(string); ok {
			e.Classification = Classification(c)
		}
		if s, ok := m["recoveryStrategy"].(string); ok {
			e.RecoveryStrategy = RecoveryStrategy(s)
		}
		if n, ok := m["maxRetries"].(float64); ok {
			e.MaxRetries = int(n)
		}
		if data, ok := m["data"].(map[string]any); ok {
			e.Data = data
		}
		return normalize(e)
	}

	if n, ok := m["code"].(float64); ok {
		if me := classifyRPCCode(int(n), errors.New(fallback(msg, "provider error"))); me != nil {
			me.Cause = m
			return me
		}
	}
	if code == CodeSessionExpired {
		return New(CodeSessionExpired, CategoryWallet, fallback(msg, "wallet session expired"),
			WithClassification(ClassPermission), WithCause(m))
	}
	if msg != "" {
		return classifyMessage(msg, m)
	}
	return New(CodeUnknown, CategoryGeneral, fmt.Sprintf("%v", m), WithCause(m))
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
