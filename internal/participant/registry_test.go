package participant

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshare/internal/geom"
	"pairshare/internal/protocol"
)

func newRegistry() *Registry {
	l := zerolog.Nop()
	return NewRegistry(&l)
}

func mustAdd(t *testing.T, r *Registry, sid, name string) *Participant {
	t.Helper()
	p, err := r.Add(sid, name)
	require.NoError(t, err)
	return p
}

func TestColorIsStablePerSID(t *testing.T) {
	assert.Equal(t, ColorFor("PA_abc"), ColorFor("PA_abc"))

	r := newRegistry()
	first := mustAdd(t, r, "PA_abc", "Ann").Color
	r.Remove("PA_abc")
	assert.Equal(t, first, mustAdd(t, r, "PA_abc", "Ann").Color)
}

func TestAddCreatesCursorAndAnnotation(t *testing.T) {
	r := newRegistry()
	p := mustAdd(t, r, "A", "Alice")
	require.NotNil(t, p.Cursor)
	require.NotNil(t, p.Annotation)
	assert.False(t, p.Annotation.AutoClear(), "remote ink is purged by the sharer, not locally")
	assert.True(t, r.Local().Annotation.AutoClear())
	assert.Equal(t, 2, r.Len())
}

func TestRemoveFreesInFlightPaths(t *testing.T) {
	r := newRegistry()
	p := mustAdd(t, r, "A", "Alice")
	p.Annotation.SetMode(protocol.Draw(false))
	require.NoError(t, p.Annotation.StartPath(1, geom.Position{X: 0.1, Y: 0.1}))

	assert.True(t, r.Remove("A"))
	assert.Nil(t, p.Annotation.InProgress())
	_, ok := r.Get("A")
	assert.False(t, ok)
	assert.False(t, r.Remove("A"))
	assert.False(t, r.Remove(LocalSID))
}

func TestRemoteOrderAndReset(t *testing.T) {
	r := newRegistry()
	mustAdd(t, r, "B", "Bob")
	mustAdd(t, r, "A", "Alice")
	remote := r.Remote()
	require.Len(t, remote, 2)
	assert.Equal(t, "A", remote[0].SID)
	assert.Equal(t, LocalSID, r.All()[2].SID)

	r.Reset()
	assert.Equal(t, 1, r.Len())
}

func TestAddRejectsLocalSID(t *testing.T) {
	r := newRegistry()
	local := r.Local()

	p, err := r.Add(LocalSID, "Mallory")
	assert.ErrorIs(t, err, ErrReservedSID)
	assert.Nil(t, p)
	assert.Same(t, local, r.Local())
	assert.Equal(t, "You", r.Local().Name)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.Remote())
}

func TestAddRenamesExisting(t *testing.T) {
	r := newRegistry()
	p := mustAdd(t, r, "A", "Alice")
	again := mustAdd(t, r, "A", "Alicia")
	assert.Same(t, p, again)
	assert.Equal(t, "Alicia", p.Name)
	assert.Equal(t, 2, r.Len())
}
