package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/bridge"
)

func newSession(t *testing.T) *bridge.Bridge {
	t.Helper()
	b := bridge.New(bridge.DefaultConfig(), nil, nil, nil, nil)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestMemoryRegistry(t *testing.T) {
	mr := NewMemoryRegistry()
	require.Zero(t, mr.Len())

	a := newSession(t)
	b := newSession(t)

	require.NoError(t, mr.Add(a))
	require.NoError(t, mr.Add(b))
	require.Error(t, mr.Add(a), "duplicate IDs are rejected")
	require.Error(t, mr.Add(nil))
	require.Equal(t, 2, mr.Len())

	got, ok := mr.Get(a.ID())
	require.True(t, ok)
	require.Equal(t, a.ID(), got.ID())

	require.Len(t, mr.All(), 2)

	require.NoError(t, mr.Remove(a.ID()))
	require.Error(t, mr.Remove(a.ID()), "removing twice fails")
	_, ok = mr.Get(a.ID())
	require.False(t, ok)
	require.Equal(t, 1, mr.Len())
}
