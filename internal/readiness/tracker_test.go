package readiness

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects every call.
type failingStore struct{}

func (failingStore) AddPlayer(context.Context, uuid.UUID, string) error {
	return errors.New("connection refused")
}

func (failingStore) GetPlayer(context.Context, uuid.UUID) (*models.Player, error) {
	return nil, errors.New("connection refused")
}

// blockingStore reads the backing record, then holds the result until released.
type blockingStore struct {
	*gateway.Memory
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Memory:  gateway.NewMemory(clockwork.NewFakeClock()),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingStore) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	p, err := b.Memory.GetPlayer(ctx, id)
	b.entered <- struct{}{}
	<-b.release
	return p, err
}

func newTestTracker(t *testing.T) (*Tracker, *gateway.Memory, uuid.UUID) {
	t.Helper()
	gw := gateway.NewMemory(clockwork.NewFakeClock())
	id := uuid.New()
	return New(id, gw, logrus.New()), gw, id
}

func TestRegisterThenSessionEnd(t *testing.T) {
	ctx := context.Background()
	tr, gw, id := newTestTracker(t)

	assert.False(t, tr.IsReady())
	require.NoError(t, tr.Register(ctx, "fr"))
	assert.True(t, tr.IsReady())
	assert.Equal(t, "fr", tr.Language())

	tr.OnSessionEnd()
	assert.False(t, tr.IsReady())
	assert.Equal(t, "en", tr.Language())

	// the remote record still says ready; polling it must not undo the reset
	remote, err := gw.GetPlayer(ctx, id)
	require.NoError(t, err)
	require.True(t, remote.Ready)
	require.NoError(t, tr.Refresh(ctx))
	assert.False(t, tr.IsReady())
	assert.Equal(t, "en", tr.Language())
	assert.True(t, tr.State().RoundEndReset)

	require.NoError(t, tr.Register(ctx, "de"))
	assert.True(t, tr.IsReady())
	assert.Equal(t, "de", tr.Language())
	assert.False(t, tr.State().RoundEndReset)
}

func TestRegisterUnauthenticated(t *testing.T) {
	tr := New(uuid.Nil, gateway.NewMemory(nil), logrus.New())
	assert.ErrorIs(t, tr.Register(context.Background(), "en"), ErrUnauthenticated)
	assert.ErrorIs(t, tr.Refresh(context.Background()), ErrUnauthenticated)
	assert.False(t, tr.IsReady())
}

func TestRegisterGatewayFailureLeavesStateUnchanged(t *testing.T) {
	tr := New(uuid.New(), failingStore{}, logrus.New())
	tr.OnSessionEnd()
	require.NoError(t, tr.ChangeLanguage("pt"))
	before := tr.State()

	err := tr.Register(context.Background(), "pt")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "addPlayer", gwErr.Op)
	assert.Equal(t, before, tr.State())

	err = tr.Refresh(context.Background())
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, before, tr.State())
}

func TestChangeLanguageLockedWhileReady(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	require.NoError(t, tr.ChangeLanguage("es"))
	assert.Equal(t, "es", tr.Language())
	assert.ErrorIs(t, tr.ChangeLanguage(""), ErrEmptyLanguage)

	require.NoError(t, tr.Register(ctx, "es"))
	assert.ErrorIs(t, tr.ChangeLanguage("it"), ErrLanguageLocked)
	assert.Equal(t, "es", tr.Language())

	tr.OnSessionEnd()
	require.NoError(t, tr.ChangeLanguage("it"))
	assert.Equal(t, "it", tr.Language())
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	tr, _, id := newTestTracker(t)
	p := &models.Player{ID: id, Language: "it", Ready: true}

	tr.ApplySnapshot(p)
	first := tr.State()
	tr.ApplySnapshot(p)
	tr.ApplySnapshot(p)
	assert.Equal(t, first, tr.State())
	assert.True(t, first.Ready)
	assert.Equal(t, "it", first.Language)
	assert.False(t, first.Stale)

	// the caller's copy is not aliased
	p.Ready = false
	assert.True(t, tr.IsReady())

	// records for someone else are ignored
	tr.ApplySnapshot(&models.Player{ID: uuid.New(), Language: "de", Ready: false})
	assert.Equal(t, first, tr.State())
}

func TestApplySnapshotMissingRecord(t *testing.T) {
	tr, _, id := newTestTracker(t)
	tr.ApplySnapshot(&models.Player{ID: id, Language: "en", Ready: true})
	require.True(t, tr.IsReady())

	tr.ApplySnapshot(nil)
	assert.False(t, tr.IsReady())
}

func TestStaleFlag(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	assert.True(t, tr.Stale())

	require.NoError(t, tr.Refresh(ctx))
	assert.False(t, tr.Stale())

	require.NoError(t, tr.Register(ctx, "en"))
	assert.True(t, tr.Stale())
	require.NoError(t, tr.Refresh(ctx))
	assert.False(t, tr.Stale())

	tr.OnSessionEnd()
	assert.True(t, tr.Stale())
}

func TestRefreshInFlightAcrossRegisterIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newBlockingStore()
	tr := New(uuid.New(), store, logrus.New())

	done := make(chan error, 1)
	go func() { done <- tr.Refresh(ctx) }()
	<-store.entered

	require.NoError(t, tr.Register(ctx, "fr"))
	require.True(t, tr.IsReady())

	close(store.release)
	require.NoError(t, <-done)

	assert.True(t, tr.IsReady(), "older snapshot must not undo a confirmed registration")
	assert.Equal(t, "fr", tr.Language())
	assert.True(t, tr.Stale())

	// the next poll sees the upserted record
	require.NoError(t, tr.Refresh(ctx))
	assert.True(t, tr.IsReady())
	assert.False(t, tr.Stale())
}

func TestRefreshInFlightAcrossSessionEndIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newBlockingStore()
	tr := New(uuid.New(), store, logrus.New())
	require.NoError(t, tr.Register(ctx, "de"))

	done := make(chan error, 1)
	go func() { done <- tr.Refresh(ctx) }()
	<-store.entered

	tr.OnSessionEnd()
	close(store.release)
	require.NoError(t, <-done)

	st := tr.State()
	assert.False(t, st.Ready)
	assert.True(t, st.RoundEndReset)
	assert.Equal(t, "en", st.Language)
	assert.True(t, st.Stale)
}
