package walleterr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string { return e.msg }
func (e rpcError) RPCCode() int  { return e.code }

type codedError struct{ code string }

func (e codedError) Error() string     { return "router error" }
func (e codedError) ErrorCode() string { return e.code }

func TestClassify_Idempotent(t *testing.T) {
	orig := New(CodeConnectionFailed, CategoryWallet, "handshake failed", WithClassification(ClassProvider))

	got := Classify(orig)
	if got != orig {
		t.Fatalf("Classify returned a different value: %+v", got)
	}
	if again := Classify(got); again != orig {
		t.Fatal("second Classify changed the value")
	}

	wrapped := fmt.Errorf("connect: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify(wrapped) = %+v, want original", got)
	}
}

func TestClassify_Markers(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		code     string
		category Category
		class    Classification
		strategy RecoveryStrategy
	}{
		{"user rejected message", errors.New("User rejected the request"), CodeUserRejected, CategoryUser, ClassPermission, RecoveryManualAction},
		{"eip1193 4001", rpcError{RPCUserRejected, "denied"}, CodeUserRejected, CategoryUser, ClassPermission, RecoveryManualAction},
		{"session expired code", codedError{CodeSessionExpired}, CodeSessionExpired, CategoryWallet, ClassPermission, RecoveryManualAction},
		{"disconnected provider", rpcError{RPCDisconnected, "gone"}, CodeWalletDisconnected, CategoryWallet, ClassTemporary, RecoveryWaitAndRetry},
		{"unrecognized chain", rpcError{RPCUnrecognizedChain, "no chain"}, CodeChainNotSupported, CategoryValidation, ClassPermanent, RecoveryNone},
		{"deadline", context.DeadlineExceeded, CodeConnectionTimeout, CategoryNetwork, ClassTemporary, RecoveryWaitAndRetry},
		{"cancelled", context.Canceled, CodeCancelled, CategoryUser, ClassPermanent, RecoveryNone},
		{"network phrase", "failed to fetch", CodeNetworkError, CategoryNetwork, ClassNetwork, RecoveryRetry},
		{"unknown string", "something odd", CodeUnknown, CategoryGeneral, ClassUnknown, RecoveryNone},
		{"unknown type", 42, CodeUnknown, CategoryGeneral, ClassUnknown, RecoveryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if got == nil {
				t.Fatal("Classify returned nil")
			}
			if got.Code != tt.code || got.Category != tt.category || got.Classification != tt.class {
				t.Errorf("got %s/%s/%s, want %s/%s/%s", got.Code, got.Category, got.Classification, tt.code, tt.category, tt.class)
			}
			if got.Strategy() != tt.strategy {
				t.Errorf("strategy = %s, want %s", got.Strategy(), tt.strategy)
			}
			if got.Message == "" {
				t.Error("empty message")
			}
			if got.Cause == nil {
				t.Error("cause not retained")
			}
		})
	}
}

func TestClassify_ObjectShape(t *testing.T) {
	obj := map[string]any{
		"code":     "wallet_locked",
		"message":  "wallet is locked",
		"category": "wallet",
	}
	got := Classify(obj)
	if got.Code != "wallet_locked" || got.Category != CategoryWallet {
		t.Errorf("got %+v", got)
	}
	if got.Strategy() != RecoveryNone {
		t.Errorf("strategy = %s, want none for unknown classification", got.Strategy())
	}

	rpc := Classify(map[string]any{"code": float64(4001), "message": "nope"})
	if rpc.Code != CodeUserRejected {
		t.Errorf("numeric code object: got %s", rpc.Code)
	}
}

func TestClassify_RepairsInvalidModalError(t *testing.T) {
	bad := &ModalError{Category: "nonsense"}
	got := Classify(bad)
	if !got.Valid() {
		t.Fatalf("result not valid: %+v", got)
	}
	if got.Category != CategoryGeneral {
		t.Errorf("category = %s, want general", got.Category)
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	var me *ModalError
	if Classify(me) != nil {
		t.Error("Classify(typed nil) should be nil")
	}
}

func TestModalError_ErrorsIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidState("already connecting"))
	if !errors.Is(err, ErrInvalidState) {
		t.Error("errors.Is(err, ErrInvalidState) = false")
	}
	if errors.Is(err, ErrCancelled) {
		t.Error("errors.Is matched the wrong code")
	}
}

func TestStrategy_AbsentEqualsNone(t *testing.T) {
	e := &ModalError{Code: "x", Category: CategoryGeneral, Message: "x"}
	if e.Strategy() != RecoveryNone {
		t.Errorf("absent strategy = %q, want none", e.Strategy())
	}
	if IsRecoverable(e) {
		t.Error("absent strategy reported recoverable")
	}
	if !IsRecoverable(errors.New("connection refused")) {
		t.Error("network error should be recoverable")
	}
}

func TestModalError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	e := New(CodeConnectionFailed, CategoryWallet, "", WithCause(cause))
	if !errors.Is(e, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	if e.Message != "connection failed" {
		t.Errorf("synthesized message = %q", e.Message)
	}
}
