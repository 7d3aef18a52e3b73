package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagefetch/models"
)

func TestSessionManager_LazyStartAndReuse(t *testing.T) {
	l := &fakeLauncher{drivers: []*fakeDriver{newFakeDriver()}}
	m := NewSessionManager(SessionConfig{Backend: "fake"}, l.launch)

	assert.False(t, m.Stats().Started)
	assert.Zero(t, l.count())

	d1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	d2, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, d1, d2)
	assert.Equal(t, 1, l.count())

	stats := m.Stats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.Uses)
	assert.Equal(t, "fake", stats.Backend)
}

func TestSessionManager_Restart(t *testing.T) {
	first, second := newFakeDriver(), newFakeDriver()
	l := &fakeLauncher{drivers: []*fakeDriver{first, second}}
	m := NewSessionManager(SessionConfig{Backend: "fake"}, l.launch)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Restart(context.Background()))

	assert.True(t, first.closed)
	d, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, Driver(second), d)
	assert.Equal(t, 1, m.Stats().Restarts)
}

func TestSessionManager_LaunchFailure(t *testing.T) {
	l := &fakeLauncher{err: errors.New("chrome not found")}
	m := NewSessionManager(SessionConfig{Backend: "fake"}, l.launch)

	_, err := m.Acquire(context.Background())
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.ErrCodeBrowserCrash, fe.Code)
	assert.ErrorContains(t, err, "chrome not found")
}

func TestSessionManager_RetiresAfterMaxUses(t *testing.T) {
	first, second := newFakeDriver(), newFakeDriver()
	l := &fakeLauncher{drivers: []*fakeDriver{first, second}}
	m := NewSessionManager(SessionConfig{Backend: "fake", MaxUses: 2}, l.launch)

	for i := 0; i < 2; i++ {
		d, err := m.Acquire(context.Background())
		require.NoError(t, err)
		assert.Same(t, Driver(first), d)
	}

	d, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, Driver(second), d)
	assert.True(t, first.closed)
	assert.Equal(t, 1, m.Stats().Uses)
}

func TestSessionManager_CookieJarRoundTrip(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "state", "cookies.dat")

	first := newFakeDriver()
	first.cookies = []models.Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", SameSite: "Lax"},
		{Name: "nodomain", Value: "x"},
	}
	second := newFakeDriver()

	l := &fakeLauncher{drivers: []*fakeDriver{first, second}}
	m := NewSessionManager(SessionConfig{Backend: "fake", CookieJar: jar}, l.launch)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Persist(context.Background())

	_, err = os.Stat(jar)
	require.NoError(t, err)

	require.NoError(t, m.Restart(context.Background()))
	require.Len(t, second.cookies, 1)
	assert.Equal(t, "sid", second.cookies[0].Name)
	assert.Equal(t, "abc", second.cookies[0].Value)
}

func TestSessionManager_CorruptJarIsIgnored(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "cookies.dat")
	require.NoError(t, os.WriteFile(jar, []byte("not json"), 0o600))

	l := &fakeLauncher{drivers: []*fakeDriver{newFakeDriver()}}
	m := NewSessionManager(SessionConfig{Backend: "fake", CookieJar: jar}, l.launch)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
}

func TestSessionManager_Close(t *testing.T) {
	drv := newFakeDriver()
	l := &fakeLauncher{drivers: []*fakeDriver{drv}}
	m := NewSessionManager(SessionConfig{Backend: "fake"}, l.launch)

	require.NoError(t, m.Close())

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.True(t, drv.closed)
	assert.False(t, m.Stats().Started)
}

func TestSessionManager_RetiresUnhealthySession(t *testing.T) {
	first, second := newFakeDriver(), newFakeDriver()
	l := &fakeLauncher{drivers: []*fakeDriver{first, second}}
	m := NewSessionManager(SessionConfig{Backend: "fake"}, l.launch)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.RecordFault()
	m.RecordFault()
	m.RecordSuccess()
	m.RecordFault()
	assert.InDelta(t, 2.5, m.Stats().ErrScore, 0.001)

	d, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, Driver(first), d)

	m.RecordFault()
	d, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, Driver(second), d)
	assert.Zero(t, m.Stats().ErrScore)
}
