package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/configstore"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/identity"
)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AppID = "test-app"
	cfg.Store.Driver = config.DriverMemory

	svc, err := NewServices(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestStart_LoadsExistingConfiguration(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	path := configstore.DocumentPath("test-app", "alice")
	require.NoError(t, svc.Store.Save(ctx, path, domain.AppConfiguration{APIKey: "VALID"}))

	sess, err := svc.Start(ctx, identity.StaticProvider{UserID: "alice"}, StartOptions{})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, path, sess.Document.Path())
	assert.Equal(t, "VALID", sess.Orchestrator.Snapshot().Config.APIKey)
}

func TestStart_GuestFallback(t *testing.T) {
	svc := newTestServices(t)

	sess, err := svc.Start(context.Background(), identity.CustomTokenProvider{Token: "bad"}, StartOptions{})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, domain.GuestUserID, sess.UserID)
	assert.Equal(t, configstore.DocumentPath("test-app", domain.GuestUserID), sess.Document.Path())
}

func TestStart_WatchFollowsExternalWrites(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, identity.StaticProvider{UserID: "bob"}, StartOptions{Watch: true})
	require.NoError(t, err)
	defer sess.Close()

	assert.False(t, sess.Orchestrator.Snapshot().ConfigLoaded)

	require.NoError(t, svc.Store.Save(ctx, sess.Document.Path(), domain.AppConfiguration{APIKey: "external"}))
	assert.Eventually(t, func() bool {
		return sess.Orchestrator.Snapshot().Config.APIKey == "external"
	}, time.Second, 5*time.Millisecond)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(newTestServices(t))

	sess, err := m.Create(context.Background(), identity.AnonymousProvider{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.True(t, m.Delete(sess.ID))
	assert.False(t, m.Delete(sess.ID))
	_, ok = m.Get(sess.ID)
	assert.False(t, ok)

	_, err = m.Create(context.Background(), identity.AnonymousProvider{})
	require.NoError(t, err)
	m.CloseAll()
	assert.Equal(t, 0, m.Len())
}
