package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/logging"
	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/store"
)

var (
	signedOut  = store.State{}
	loading    = store.State{IsLoading: true}
	needsSetup = store.State{User: &backend.User{ID: "u1"}}
	complete   = store.State{
		User:    &backend.User{ID: "u1"},
		Profile: &profile.Profile{UserID: "u1", FullName: "Ann", Phone: "+15550001"},
	}
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		state    store.State
		location string
		want     string
	}{
		{"loading holds", loading, "/(tabs)", ""},
		{"signed out in app", signedOut, "/(tabs)/bills", Welcome},
		{"signed out in auth group", signedOut, "/(auth)/sign-in", ""},
		{"setup needed from sign in", needsSetup, "/(auth)/sign-in", ProfileSetup},
		{"already on setup", needsSetup, "/(auth)/profile-setup", ""},
		{"complete leaves auth group", complete, "/(auth)/profile-setup", Tabs},
		{"complete in app", complete, "/(tabs)/home", ""},
		{"setup needed in app stays", needsSetup, "/(tabs)", ""},
	}
	for _, tc := range cases {
		got, ok := Evaluate(tc.state, tc.location)
		if got != tc.want || ok != (tc.want != "") {
			t.Fatalf("%s: expected %q, got %q (%v)", tc.name, tc.want, got, ok)
		}
	}
}

func TestInAuthGroup(t *testing.T) {
	if !InAuthGroup("(auth)/welcome") || !InAuthGroup("/(auth)") {
		t.Fatalf("expected auth group locations")
	}
	if InAuthGroup("/(tabs)/(auth)") || InAuthGroup("/") {
		t.Fatalf("only the first segment decides")
	}
}

type fakeSource struct {
	mu      sync.Mutex
	state   store.State
	updates chan store.State
}

func (f *fakeSource) State() store.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Subscribe() (<-chan store.State, func()) {
	return f.updates, func() {}
}

func (f *fakeSource) set(st store.State) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	f.updates <- st
}

func TestWatcherSetLocation(t *testing.T) {
	src := &fakeSource{state: signedOut, updates: make(chan store.State, 1)}
	box := &Mailbox{}
	w := NewWatcher(src, box, nil, logging.Discard())

	target, ok := w.SetLocation("/(tabs)")
	if !ok || target != Welcome {
		t.Fatalf("expected welcome redirect, got %q", target)
	}
	if w.Location() != Welcome {
		t.Fatalf("location must follow the redirect, got %q", w.Location())
	}
	if route, ok := box.Take(); !ok || route != Welcome {
		t.Fatalf("expected navigator call, got %q", route)
	}
	if _, ok := box.Take(); ok {
		t.Fatalf("take must clear the pending redirect")
	}
}

func TestWatcherFollowsStore(t *testing.T) {
	src := &fakeSource{state: loading, updates: make(chan store.State, 1)}
	nav := make(navChan, 4)
	w := NewWatcher(src, nav, nil, logging.Discard())

	if _, ok := w.SetLocation("/(auth)/sign-in"); ok {
		t.Fatalf("no redirect while loading")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	src.set(needsSetup)
	expectRoute(t, nav, ProfileSetup)

	src.set(complete)
	expectRoute(t, nav, Tabs)

	src.set(signedOut)
	expectRoute(t, nav, Welcome)

	cancel()
	<-done
}

type navChan chan string

func (n navChan) Replace(route string) { n <- route }

func expectRoute(t *testing.T, nav navChan, want string) {
	t.Helper()
	select {
	case got := <-nav:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}
