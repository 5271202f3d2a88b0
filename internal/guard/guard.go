// Package guard turns store snapshots into navigation redirects.
package guard

import (
	"strings"

	"github.com/onebills/onebills/internal/store"
)

// Routes known to the guards.
const (
	AuthGroup    = "(auth)"
	Welcome      = "/(auth)/welcome"
	ProfileSetup = "/(auth)/profile-setup"
	Tabs         = "/(tabs)"
)

// InAuthGroup reports whether location lies in the unauthenticated area.
func InAuthGroup(location string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(location, "/"), "/")
	return first == AuthGroup
}

// AuthRedirect sends a signed-out visitor outside the unauthenticated area to
// the welcome screen.
func AuthRedirect(st store.State, location string) (string, bool) {
	if st.IsLoading || st.IsAuthenticated() || InAuthGroup(location) {
		return "", false
	}
	return Welcome, true
}

// GuestRedirect moves a signed-in user out of the unauthenticated area, to
// profile setup while the profile is incomplete and to the main app after.
func GuestRedirect(st store.State, location string) (string, bool) {
	if st.IsLoading || !st.IsAuthenticated() || !InAuthGroup(location) {
		return "", false
	}
	target := Tabs
	if st.NeedsProfileSetup() {
		target = ProfileSetup
	}
	if samePath(location, target) {
		return "", false
	}
	return target, true
}

// Evaluate applies both guards; at most one of them can fire for a state.
func Evaluate(st store.State, location string) (string, bool) {
	if target, ok := AuthRedirect(st, location); ok {
		return target, true
	}
	return GuestRedirect(st, location)
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
