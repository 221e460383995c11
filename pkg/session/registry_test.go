package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingHook struct {
	mu    sync.Mutex
	calls []string
}

func (h *recordingHook) FailAllForSession(sessionID, reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, sessionID+":"+reason)
	return 2
}

func newTestRegistry(opts ...Option) *Registry {
	n := 0
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	seq := 0
	ids := func() string {
		seq++
		return fmt.Sprintf("s-%d", seq)
	}
	return NewRegistry(append([]Option{WithClock(clock), WithIDGenerator(ids)}, opts...)...)
}

func mustCreate(t *testing.T, r *Registry, wallet string, chain ChainType) Session {
	t.Helper()
	s, err := r.Create(CreateParams{WalletID: wallet, ChainType: chain, Chain: ChainInfo{ChainID: "1"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestRegistry_CreateValidation(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create(CreateParams{ChainType: ChainEVM}); !errors.Is(err, ErrMissingWalletID) {
		t.Errorf("err = %v, want ErrMissingWalletID", err)
	}
	if _, err := r.Create(CreateParams{WalletID: "w"}); !errors.Is(err, ErrMissingChainType) {
		t.Errorf("err = %v, want ErrMissingChainType", err)
	}

	s := mustCreate(t, r, "io.metamask", ChainEVM)
	if s.ID == "" || s.Status != StatusConnected || s.Chain.Type != ChainEVM || s.Active {
		t.Errorf("unexpected session %+v", s)
	}
	other := mustCreate(t, r, "io.metamask", ChainEVM)
	if other.ID == s.ID {
		t.Error("ids not unique")
	}
}

func TestRegistry_SwitchActiveKeepsSingleActive(t *testing.T) {
	r := newTestRegistry()
	a := mustCreate(t, r, "wallet-a", ChainEVM)
	b := mustCreate(t, r, "wallet-b", ChainSolana)

	var mu sync.Mutex
	var violations int
	r.Subscribe(func(Event) {
		count := 0
		for _, s := range r.List() {
			if s.Active {
				count++
			}
		}
		mu.Lock()
		if count != 1 {
			violations++
		}
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		target := a.ID
		if i%2 == 1 {
			target = b.ID
		}
		if err := r.SwitchActive(target); err != nil {
			t.Fatalf("SwitchActive: %v", err)
		}
		active, ok := r.Active()
		if !ok || active.ID != target {
			t.Fatalf("Active = %v, want %s", active.ID, target)
		}
	}
	if violations != 0 {
		t.Errorf("observers saw %d states without exactly one active session", violations)
	}
}

func TestRegistry_SwitchActiveErrors(t *testing.T) {
	r := newTestRegistry()
	if err := r.SwitchActive("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	s := mustCreate(t, r, "w", ChainAztec)
	_ = r.End(s.ID, "bye")
	if err := r.SwitchActive(s.ID); !errors.Is(err, ErrTerminal) {
		t.Errorf("err = %v, want ErrTerminal", err)
	}
}

func TestRegistry_StatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusConnecting, StatusConnected, true},
		{StatusConnecting, StatusError, true},
		{StatusConnecting, StatusReconnecting, false},
		{StatusConnected, StatusReconnecting, true},
		{StatusConnected, StatusConnecting, false},
		{StatusReconnecting, StatusConnected, true},
		{StatusReconnecting, StatusDisconnected, true},
		{StatusDisconnected, StatusConnected, false},
		{StatusError, StatusConnecting, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			r := newTestRegistry()
			s, _ := r.Create(CreateParams{WalletID: "w", ChainType: ChainEVM, Status: tt.from})
			err := r.UpdateStatus(s.ID, tt.to)
			if tt.ok && err != nil {
				t.Errorf("UpdateStatus = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("UpdateStatus = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestRegistry_TerminalStatusClearsActive(t *testing.T) {
	r := newTestRegistry()
	s := mustCreate(t, r, "w", ChainEVM)
	_ = r.SwitchActive(s.ID)

	if err := r.UpdateStatus(s.ID, StatusError); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Active(); ok {
		t.Error("errored session still active")
	}
}

func TestRegistry_EndFailsTransactionsAndEvicts(t *testing.T) {
	hook := &recordingHook{}
	r := newTestRegistry(WithTerminationHook(hook))
	s := mustCreate(t, r, "w", ChainEVM)
	_ = r.SwitchActive(s.ID)

	var ended []Event
	r.Subscribe(func(ev Event) {
		if ev.Type == EventEnded {
			ended = append(ended, ev)
		}
	})

	if err := r.End(s.ID, "user disconnected"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := r.End(s.ID, "again"); err != nil {
		t.Fatalf("second End: %v", err)
	}

	got, _ := r.Get(s.ID)
	if got.Status != StatusDisconnected || got.Active || got.EndReason != "user disconnected" {
		t.Errorf("session after End = %+v", got)
	}
	if _, ok := r.Active(); ok {
		t.Error("ended session still active")
	}
	if len(hook.calls) != 1 || hook.calls[0] != s.ID+":user disconnected" {
		t.Errorf("hook calls = %v", hook.calls)
	}
	if len(ended) != 1 {
		t.Errorf("ended events = %d, want 1", len(ended))
	}
	if err := r.End("missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("End(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Live(t *testing.T) {
	r := newTestRegistry()
	ended := mustCreate(t, r, "a", ChainEVM)
	errored := mustCreate(t, r, "b", ChainEVM)
	live := mustCreate(t, r, "c", ChainEVM)

	if err := r.End(ended.ID, "done"); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateStatus(errored.ID, StatusError); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id   string
		want bool
	}{
		{live.ID, true},
		{ended.ID, false},
		{errored.ID, false},
		{"missing", false},
	}
	for _, tc := range tests {
		if got := r.Live(tc.id); got != tc.want {
			t.Errorf("Live(%s) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestRegistry_Lookups(t *testing.T) {
	r := newTestRegistry()
	old := mustCreate(t, r, "w", ChainEVM)
	_ = r.End(old.ID, "replaced")
	live := mustCreate(t, r, "w", ChainEVM)
	sol := mustCreate(t, r, "phantom", ChainSolana)

	got, ok := r.GetByWallet("w")
	if !ok || got.ID != live.ID {
		t.Errorf("GetByWallet = %s, want live session %s", got.ID, live.ID)
	}
	if _, ok := r.GetByWallet("nobody"); ok {
		t.Error("GetByWallet found unknown wallet")
	}

	evm := r.ByChainType(ChainEVM)
	if len(evm) != 1 || evm[0].ID != live.ID {
		t.Errorf("ByChainType(evm) = %v", evm)
	}
	if s := r.ByChainType(ChainSolana); len(s) != 1 || s[0].ID != sol.ID {
		t.Errorf("ByChainType(solana) = %v", s)
	}
	if all := r.List(); len(all) != 3 || all[0].ID != old.ID {
		t.Errorf("List order = %v", all)
	}
}

func TestRegistry_UpdateChain(t *testing.T) {
	r := newTestRegistry()
	s := mustCreate(t, r, "w", ChainEVM)

	if err := r.UpdateChain(s.ID, ChainInfo{ChainID: "137", Name: "polygon"}); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get(s.ID)
	if got.Chain.ChainID != "137" || got.Chain.Type != ChainEVM || got.Status != StatusConnected {
		t.Errorf("after UpdateChain = %+v", got)
	}

	_ = r.End(s.ID, "")
	if err := r.UpdateChain(s.ID, ChainInfo{ChainID: "1"}); !errors.Is(err, ErrTerminal) {
		t.Errorf("UpdateChain on ended session = %v, want ErrTerminal", err)
	}
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := newTestRegistry()
	s, _ := r.Create(CreateParams{WalletID: "w", ChainType: ChainEVM, Metadata: map[string]string{"k": "v"}, Addresses: []string{"0xabc"}})
	s.Metadata["k"] = "mutated"
	s.Addresses[0] = "mutated"

	got, _ := r.Get(s.ID)
	if got.Metadata["k"] != "v" || got.Addresses[0] != "0xabc" {
		t.Error("registry state mutated through snapshot")
	}
}
