package discovery

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/walletmesh/pkg/eventbus"
)

const pageOrigin = "https://app.example"

func scenarioRequirement() CapabilityRequirement {
	return CapabilityRequirement{
		Technologies: []Technology{{Type: "evm", Interfaces: []string{"eip-1193"}, Features: []string{}}},
		Features:     []string{"account-management"},
	}
}

func startResponder(t *testing.T, bus eventbus.PubSub, info ResponderInfo, policy SecurityPolicy) *Responder {
	t.Helper()
	r := NewResponder(bus, ResponderConfig{Origin: pageOrigin})
	if err := r.Start(info, policy); err != nil {
		t.Fatalf("Start(%s): %v", info.RDNS, err)
	}
	t.Cleanup(r.Stop)
	return r
}

func TestDiscovery_Scenario(t *testing.T) {
	bus := eventbus.New(nil)
	policy := SecurityPolicy{RequireHTTPS: true}
	startResponder(t, bus, evmWallet(), policy)
	startResponder(t, bus, solanaWallet(), policy)

	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin, Initiator: InitiatorInfo{Name: "dApp", URL: pageOrigin}})
	defer q.Close()

	sessionID := q.Broadcast(scenarioRequirement())
	responses := q.Collect(context.Background(), sessionID, 20*time.Millisecond)

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	resp := responses[0]
	if resp.SessionID != sessionID {
		t.Errorf("SessionID = %q, want %q", resp.SessionID, sessionID)
	}
	if resp.RDNS != "com.example.a" {
		t.Errorf("RDNS = %q, want com.example.a", resp.RDNS)
	}
	wantTechs := []Technology{{Type: "evm", Interfaces: []string{"eip-1193"}, Features: []string{}}}
	if !reflect.DeepEqual(resp.Matched.Required.Technologies, wantTechs) {
		t.Errorf("matched technologies = %+v, want %+v", resp.Matched.Required.Technologies, wantTechs)
	}
}

func TestDiscovery_OriginMismatchYieldsNothing(t *testing.T) {
	bus := eventbus.New(nil)
	startResponder(t, bus, evmWallet(), SecurityPolicy{})

	q := NewRequester(bus, RequesterConfig{Origin: "https://evil.example"})
	defer q.Close()

	got := q.Discover(context.Background(), scenarioRequirement(), 10*time.Millisecond)
	if len(got) != 0 {
		t.Errorf("got %d responses from mismatched origin, want 0", len(got))
	}
}

func TestDiscovery_LocalhostRequiresAllowLocalhost(t *testing.T) {
	for _, allow := range []bool{false, true} {
		bus := eventbus.New(nil)
		startResponder(t, bus, evmWallet(), SecurityPolicy{RequireHTTPS: true, AllowLocalhost: allow})

		q := NewRequester(bus, RequesterConfig{Origin: "http://localhost:5173"})
		got := q.Discover(context.Background(), scenarioRequirement(), 10*time.Millisecond)
		q.Close()

		want := 0
		if allow {
			want = 1
		}
		if len(got) != want {
			t.Errorf("allowLocalhost=%v: got %d responses, want %d", allow, len(got), want)
		}
	}
}

func TestDiscovery_RateLimitDropsSilently(t *testing.T) {
	bus := eventbus.New(nil)
	startResponder(t, bus, evmWallet(), SecurityPolicy{RateLimit: RateLimit{MaxRequests: 2, Window: time.Hour}})

	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin})
	defer q.Close()

	counts := make([]int, 3)
	for i := range counts {
		id := q.Broadcast(scenarioRequirement())
		counts[i] = len(q.Forget(id))
	}
	if counts[0] != 1 || counts[1] != 1 || counts[2] != 0 {
		t.Errorf("responses per request = %v, want [1 1 0]", counts)
	}
}

func TestDiscovery_DeduplicatesByResponder(t *testing.T) {
	bus := eventbus.New(nil)
	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin})
	defer q.Close()

	id := q.Broadcast(scenarioRequirement())
	resp := Response{Type: EventResponse, Version: ProtocolVersion, SessionID: id, ResponderID: "r-1", RDNS: "com.example.a"}
	payload, _ := json.Marshal(resp)
	for i := 0; i < 3; i++ {
		bus.Publish(eventbus.Event{Type: EventResponse, Payload: payload})
	}

	if got := q.Forget(id); len(got) != 1 {
		t.Errorf("got %d responses, want 1 after dedupe", len(got))
	}
}

func TestDiscovery_IgnoresUncorrelatedAndIncompatible(t *testing.T) {
	bus := eventbus.New(nil)
	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin})
	defer q.Close()

	id := q.Broadcast(scenarioRequirement())
	for _, r := range []Response{
		{Type: EventResponse, Version: ProtocolVersion, SessionID: "someone-else", RDNS: "x"},
		{Type: EventResponse, Version: "2.0.0", SessionID: id, RDNS: "y"},
	} {
		payload, _ := json.Marshal(r)
		bus.Publish(eventbus.Event{Type: EventResponse, Payload: payload})
	}
	bus.Publish(eventbus.Event{Type: EventResponse, Payload: []byte("{not json")})

	if got := q.Forget(id); len(got) != 0 {
		t.Errorf("got %d responses, want 0", len(got))
	}
}

func TestRequester_WaitForReturnsEarly(t *testing.T) {
	bus := eventbus.New(nil)
	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin})
	defer q.Close()

	id := q.Broadcast(scenarioRequirement())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		for _, rdns := range []string{"com.example.other", "com.example.target"} {
			payload, _ := json.Marshal(Response{Type: EventResponse, Version: ProtocolVersion, SessionID: id, RDNS: rdns})
			bus.Publish(eventbus.Event{Type: EventResponse, Payload: payload})
		}
	}()

	start := time.Now()
	resp, ok := q.WaitFor(context.Background(), id, 5*time.Second, func(r Response) bool {
		return r.RDNS == "com.example.target"
	})
	wg.Wait()

	if !ok || resp.RDNS != "com.example.target" {
		t.Fatalf("WaitFor = %+v, %v", resp, ok)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("WaitFor did not return early")
	}
	if q.Responses(id) != nil {
		t.Error("request not forgotten after WaitFor")
	}
}

func TestRequester_WaitForTimesOut(t *testing.T) {
	bus := eventbus.New(nil)
	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin})
	defer q.Close()

	id := q.Broadcast(scenarioRequirement())
	if _, ok := q.WaitFor(context.Background(), id, 10*time.Millisecond, nil); ok {
		t.Error("WaitFor succeeded without responders")
	}
}

func TestResponder_StartStop(t *testing.T) {
	bus := eventbus.New(nil)
	r := NewResponder(bus, ResponderConfig{Origin: pageOrigin})

	if err := r.Start(ResponderInfo{Name: "x"}, SecurityPolicy{}); err != ErrInvalidResponderInfo {
		t.Errorf("Start(invalid) = %v, want ErrInvalidResponderInfo", err)
	}
	if err := r.Start(evmWallet(), SecurityPolicy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(evmWallet(), SecurityPolicy{}); err != ErrAlreadyResponding {
		t.Errorf("second Start = %v, want ErrAlreadyResponding", err)
	}
	if r.Info().UUID == "" {
		t.Error("instance UUID not generated")
	}

	r.Stop()
	r.Stop()
	if r.Responding() {
		t.Error("still responding after Stop")
	}
	if n := bus.SubscriberCount(EventRequest); n != 0 {
		t.Errorf("SubscriberCount = %d after Stop, want 0", n)
	}

	noOrigin := NewResponder(bus, ResponderConfig{})
	if err := noOrigin.Start(evmWallet(), SecurityPolicy{}); err != ErrMissingPageOrigin {
		t.Errorf("Start without origin = %v, want ErrMissingPageOrigin", err)
	}
}

func TestRequest_WireFormat(t *testing.T) {
	bus := eventbus.New(nil)
	var raw map[string]any
	bus.Subscribe(EventRequest, func(ev eventbus.Event) {
		_ = json.Unmarshal(ev.Payload, &raw)
	})

	q := NewRequester(bus, RequesterConfig{Origin: pageOrigin, Initiator: InitiatorInfo{Name: "dApp", URL: pageOrigin}})
	defer q.Close()
	id := q.Broadcast(CapabilityRequirement{Technologies: []Technology{{Type: "aztec"}}})

	if raw["type"] != EventRequest || raw["version"] != ProtocolVersion || raw["sessionId"] != id || raw["origin"] != pageOrigin {
		t.Errorf("unexpected envelope: %v", raw)
	}
	required := raw["required"].(map[string]any)
	techs := required["technologies"].([]any)
	tech := techs[0].(map[string]any)
	if _, ok := tech["interfaces"].([]any); !ok {
		t.Errorf("interfaces not encoded as array: %v", tech)
	}
	if _, ok := required["features"].([]any); !ok {
		t.Errorf("features not encoded as array: %v", required)
	}
	if info := raw["initiatorInfo"].(map[string]any); info["name"] != "dApp" {
		t.Errorf("initiatorInfo = %v", info)
	}
}
