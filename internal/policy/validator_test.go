package policy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatorMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		target  string
		allowed bool
	}{
		{name: "InternalService", pattern: `.*\.internal:\d+`, target: "service1.internal:443", allowed: true},
		{name: "ExternalHost", pattern: `.*\.internal:\d+`, target: "evil.com:443", allowed: false},
		{name: "MissingPort", pattern: `.*\.internal:\d+`, target: "service1.internal", allowed: false},
		{name: "DefaultAllowsAll", pattern: "", target: "anything:1", allowed: true},
		{name: "MatchAllAllowsEmpty", pattern: MatchAll, target: "", allowed: true},
		{name: "Unanchored", pattern: `internal`, target: "db.internal:5432", allowed: true},
		{name: "Anchored", pattern: `^db\.internal:5432$`, target: "db.internal:54321", allowed: false},
		{name: "NoNormalization", pattern: `^db\.internal:5432$`, target: "DB.internal:5432", allowed: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v, err := NewValidator(tc.pattern)
			require.NoError(t, err)
			require.Equal(t, tc.allowed, v.Matches(tc.target))
		})
	}
}

func TestNewValidatorRejectsBadPattern(t *testing.T) {
	t.Parallel()
	_, err := NewValidator(`(unclosed`)
	require.Error(t, err)
}

func TestValidatorDefaultString(t *testing.T) {
	t.Parallel()
	v, err := NewValidator("")
	require.NoError(t, err)
	require.Equal(t, MatchAll, v.String())
}

func TestValidatorConcurrentUse(t *testing.T) {
	t.Parallel()
	v, err := NewValidator(`.*\.internal:\d+`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !v.Matches("service1.internal:443") || v.Matches("evil.com:443") {
					t.Error("inconsistent match result")
					return
				}
			}
		}()
	}
	wg.Wait()
}
