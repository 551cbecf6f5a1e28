package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"emberpost/pkg/cache"
	"emberpost/pkg/letters"
	"emberpost/pkg/models"
)

var errDown = errors.New("connection refused")

// fakeRemote scripts the backend per call. Nil function fields default to a
// healthy backend with an empty collection.
type fakeRemote struct {
	ping   func() bool
	list   func() ([]models.Letter, error)
	create func(models.Letter) (bool, error)
	update func(string, any) (bool, error)

	createCalls []models.Letter
	updateCalls []string
}

func (f *fakeRemote) Ping() bool {
	if f.ping != nil {
		return f.ping()
	}
	return true
}

func (f *fakeRemote) ListLetters() ([]models.Letter, error) {
	if f.list != nil {
		return f.list()
	}
	return []models.Letter{}, nil
}

func (f *fakeRemote) CreateLetter(l models.Letter) (bool, error) {
	f.createCalls = append(f.createCalls, l)
	if f.create != nil {
		return f.create(l)
	}
	return true, nil
}

func (f *fakeRemote) UpdateLetter(id string, updates any) (bool, error) {
	f.updateCalls = append(f.updateCalls, id)
	if f.update != nil {
		return f.update(id, updates)
	}
	return true, nil
}

func offlineRemote() *fakeRemote {
	return &fakeRemote{
		ping:   func() bool { return false },
		list:   func() ([]models.Letter, error) { return nil, errDown },
		create: func(models.Letter) (bool, error) { return false, errDown },
		update: func(string, any) (bool, error) { return false, errDown },
	}
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// newStack wires a real store to an engine over the given remote and cache.
func newStack(remote RemoteStore, c *cache.Cache) (*Engine, *letters.Store) {
	eng := New(remote, c)
	store := letters.New(eng)
	eng.Bind(store)
	return eng, store
}

func TestCreateOnlineLandsRemotely(t *testing.T) {
	remote := &fakeRemote{}
	eng, store := newStack(remote, newTestCache(t))

	res := store.Create("hello fire")
	require.True(t, res.Success)
	require.Equal(t, letters.MsgCreatedRemote, res.Message)
	require.False(t, res.Letter.Local)

	require.True(t, eng.Online())
	require.Equal(t, 0, eng.QueueLen())
	require.Len(t, remote.createCalls, 1)

	all := store.GetAll()
	require.Len(t, all, 1)
	require.Equal(t, res.Letter.ID, all[0].ID)
	require.False(t, all[0].Local)
}

func TestCreateOfflineQueuesAndStaysVisible(t *testing.T) {
	c := newTestCache(t)
	eng, store := newStack(offlineRemote(), c)

	res := store.Create("written in the dark")
	require.True(t, res.Success, "an offline create still succeeds for the caller")
	require.Equal(t, letters.MsgCreatedLocal, res.Message)
	require.True(t, res.Letter.Local)

	require.False(t, eng.Online())
	require.Equal(t, 1, eng.QueueLen())

	all := store.GetAll()
	require.Len(t, all, 1)
	require.True(t, all[0].Local)

	// the queue reached the durable slot too
	persisted := c.LoadQueue()
	require.Len(t, persisted, 1)
	require.Equal(t, res.Letter.ID, persisted[0].LetterID())
}

func TestRejectedCreateStaysOnline(t *testing.T) {
	c := newTestCache(t)
	remote := &fakeRemote{create: func(models.Letter) (bool, error) { return false, nil }}
	eng, store := newStack(remote, c)

	res := store.Create("refused by the backend")
	require.True(t, res.Success)
	require.True(t, res.Letter.Local)

	// the backend answered; only a transport fault means offline
	require.True(t, eng.Online())
	require.Equal(t, 1, eng.QueueLen())
	require.Len(t, c.LoadQueue(), 1)
}

func TestRejectedUpdateStaysOnline(t *testing.T) {
	remote := &fakeRemote{update: func(string, any) (bool, error) { return false, nil }}
	eng, store := newStack(remote, newTestCache(t))

	res := store.Create("fine letter")
	require.True(t, eng.Online())

	out := store.AddReaction(res.Letter.ID, "fire")
	require.True(t, out.Success)
	require.True(t, eng.Online())
	require.Equal(t, 1, eng.QueueLen())
}

func TestLoadFiltersExpiredFromRemote(t *testing.T) {
	now := time.Now()
	alive := models.NewLetter("alive", now.Add(-time.Hour))
	dead := models.NewLetter("dead", now.Add(-models.TTL-time.Hour))
	remote := &fakeRemote{
		list: func() ([]models.Letter, error) {
			return []models.Letter{dead, alive}, nil
		},
	}
	c := newTestCache(t)
	eng, store := newStack(remote, c)

	eng.SyncNow()

	all := store.GetAll()
	require.Len(t, all, 1)
	require.Equal(t, alive.ID, all[0].ID)

	// the persisted snapshot is filtered the same way
	snap := c.LoadSnapshot()
	require.Len(t, snap, 1)
	require.Equal(t, alive.ID, snap[0].ID)
}

func TestLoadFallsBackToSnapshotWhenListFails(t *testing.T) {
	c := newTestCache(t)
	kept := models.NewLetter("from cache", time.Now())
	require.NoError(t, c.Save([]models.Letter{kept}, nil))

	remote := &fakeRemote{
		ping: func() bool { return true },
		list: func() ([]models.Letter, error) { return nil, errDown },
	}
	eng, store := newStack(remote, c)

	eng.SyncNow()

	require.False(t, eng.Online(), "a failed list flips the engine offline")
	all := store.GetAll()
	require.Len(t, all, 1)
	require.Equal(t, kept.ID, all[0].ID)
}

func TestOfflineLoadRewritesSnapshot(t *testing.T) {
	t0 := time.Now().Add(-time.Hour).Truncate(time.Second)
	clock := t0
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"),
		cache.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	alive := models.NewLetter("alive", time.Now())
	dead := models.NewLetter("dead", time.Now().Add(-models.TTL-time.Hour))
	require.NoError(t, c.Save([]models.Letter{dead, alive}, nil))
	require.True(t, c.LastSync().Equal(t0))

	clock = t0.Add(time.Minute)
	eng, store := newStack(offlineRemote(), c)
	eng.Start(context.Background())
	defer eng.Stop()

	require.Len(t, store.GetAll(), 1)
	// the filtered fallback load is written back to the durable slot
	require.True(t, c.LastSync().Equal(t0.Add(time.Minute)))
}

func TestDrainHaltsOnFirstFailure(t *testing.T) {
	c := newTestCache(t)

	// capture three creates while offline
	eng, store := newStack(offlineRemote(), c)
	r1 := store.Create("one")
	r2 := store.Create("two")
	r3 := store.Create("three")
	require.Equal(t, 3, eng.QueueLen())

	// backend comes back but chokes on the second entry
	var delivered []string
	remote := &fakeRemote{
		create: func(l models.Letter) (bool, error) {
			if l.ID == r2.Letter.ID {
				return false, errDown
			}
			delivered = append(delivered, l.ID)
			return true, nil
		},
	}
	eng2, store2 := newStack(remote, c)
	// seed the state the way a restart would
	store2.Replace(store.Snapshot())
	eng2.queue = c.LoadQueue()

	eng2.SyncNow()

	require.Equal(t, []string{r1.Letter.ID}, delivered, "only the head may land before the halt")
	require.False(t, eng2.Online())
	require.Equal(t, 2, eng2.QueueLen())

	// FIFO survives: the failed entry is still at the head
	q := c.LoadQueue()
	require.Len(t, q, 2)
	require.Equal(t, r2.Letter.ID, q[0].LetterID())
	require.Equal(t, r3.Letter.ID, q[1].LetterID())

	// no entry was skipped over the stuck one
	require.Len(t, remote.createCalls, 2)

	// next cycle retries from the failed entry and finishes
	remote.create = nil
	eng2.SyncNow()
	require.Equal(t, 0, eng2.QueueLen())
	require.True(t, eng2.Online())
	require.Empty(t, c.LoadQueue())
}

func TestDrainClearsLocalFlag(t *testing.T) {
	c := newTestCache(t)
	_, store := newStack(offlineRemote(), c)

	res := store.Create("pending")
	require.True(t, res.Letter.Local)

	// same engine recovers connectivity
	eng2, store2 := newStack(&fakeRemote{}, c)
	store2.Replace(store.Snapshot())
	eng2.queue = c.LoadQueue()

	eng2.SyncNow()

	got, ok := store2.GetByID(res.Letter.ID)
	require.True(t, ok)
	require.False(t, got.Local)
	require.Equal(t, 0, eng2.QueueLen())
}

func TestDrainDropsRejectedOp(t *testing.T) {
	c := newTestCache(t)
	eng, store := newStack(offlineRemote(), c)
	store.Create("will be rejected")
	require.Equal(t, 1, eng.QueueLen())

	// delivered but refused: drop it rather than retry forever
	remote := &fakeRemote{create: func(models.Letter) (bool, error) { return false, nil }}
	eng2, store2 := newStack(remote, c)
	store2.Replace(store.Snapshot())
	eng2.queue = c.LoadQueue()

	eng2.SyncNow()

	require.True(t, eng2.Online())
	require.Equal(t, 0, eng2.QueueLen())
	require.Empty(t, c.LoadQueue())
}

func TestStartRecoversQueueAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := cache.Open(dir)
	require.NoError(t, err)

	eng, store := newStack(offlineRemote(), c)
	res := store.Create("survives restart")
	require.Equal(t, 1, eng.QueueLen())
	require.NoError(t, c.Close())

	// process restarts against the same cache dir, backend still down
	c2, err := cache.Open(dir)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	eng2, store2 := newStack(offlineRemote(), c2)
	eng2.Start(context.Background())
	defer eng2.Stop()

	require.Equal(t, 1, eng2.QueueLen())
	got, ok := store2.GetByID(res.Letter.ID)
	require.True(t, ok)
	require.True(t, got.Local)
}

func TestStartDrainsLeftoverQueueWhenOnline(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := cache.Open(dir)
	require.NoError(t, err)

	_, store := newStack(offlineRemote(), c)
	res := store.Create("queued before crash")
	require.NoError(t, c.Close())

	c2, err := cache.Open(dir)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	remote := &fakeRemote{}
	eng2, store2 := newStack(remote, c2)
	eng2.Start(context.Background())
	defer eng2.Stop()

	require.Equal(t, 0, eng2.QueueLen())
	require.Len(t, remote.createCalls, 1)
	require.Equal(t, res.Letter.ID, remote.createCalls[0].ID)

	// the queued-only letter survived the startup reload
	got, ok := store2.GetByID(res.Letter.ID)
	require.True(t, ok)
	require.False(t, got.Local)
}

func TestReloadKeepsQueuedOnlyLetters(t *testing.T) {
	c := newTestCache(t)
	eng, store := newStack(offlineRemote(), c)
	res := store.Create("not on the remote yet")

	// remote recovers its ping but keeps failing creates, so the queue
	// stays put while the reload succeeds
	remoteLetter := models.NewLetter("already remote", time.Now())
	eng.remote = &fakeRemote{
		list:   func() ([]models.Letter, error) { return []models.Letter{remoteLetter}, nil },
		create: func(models.Letter) (bool, error) { return false, errDown },
	}
	eng.SyncNow()

	ids := map[string]bool{}
	for _, l := range store.GetAll() {
		ids[l.ID] = true
	}
	require.True(t, ids[remoteLetter.ID])
	require.True(t, ids[res.Letter.ID], "a queued-only letter must survive the reload")
	require.Equal(t, 1, eng.QueueLen())
}

func TestUpdateOfflineQueuesFullRecord(t *testing.T) {
	c := newTestCache(t)
	eng, store := newStack(offlineRemote(), c)

	res := store.Create("to be reacted on")
	out := store.AddReaction(res.Letter.ID, "fire")
	require.True(t, out.Success)

	require.Equal(t, 2, eng.QueueLen())
	q := c.LoadQueue()
	require.Equal(t, models.ActionCreate, q[0].Action)
	require.Equal(t, models.ActionUpdate, q[1].Action)
	require.Equal(t, 1, q[1].Letter.Reactions["fire"], "the queued update carries the full current record")
}

func TestUpdateOnlineDoesNotQueue(t *testing.T) {
	remote := &fakeRemote{}
	eng, store := newStack(remote, newTestCache(t))

	res := store.Create("seen")
	store.Update(res.Letter.ID, models.LetterPatch{Views: models.IntPtr(1)})

	require.Equal(t, 0, eng.QueueLen())
	require.Equal(t, []string{res.Letter.ID}, remote.updateCalls)
}

func TestEmptyDrainIsNoop(t *testing.T) {
	remote := &fakeRemote{}
	eng, _ := newStack(remote, newTestCache(t))

	eng.SyncNow()
	require.Empty(t, remote.createCalls)
	require.Empty(t, remote.updateCalls)
	require.Equal(t, 0, eng.QueueLen())
}

func TestPurgeExpired(t *testing.T) {
	now := time.Now()
	c := newTestCache(t)
	eng, store := newStack(&fakeRemote{}, c)

	alive := models.NewLetter("alive", now)
	dead := models.NewLetter("dead", now.Add(-models.TTL-time.Hour))
	store.Replace([]models.Letter{alive, dead})

	require.Equal(t, 1, eng.PurgeExpired())
	require.Len(t, store.GetAll(), 1)
	require.Len(t, c.LoadSnapshot(), 1)

	// idempotent
	require.Equal(t, 0, eng.PurgeExpired())
}

func TestConnectivityTransitions(t *testing.T) {
	up := true
	remote := &fakeRemote{ping: func() bool { return up }}
	eng, _ := newStack(remote, newTestCache(t))

	eng.SyncNow()
	require.True(t, eng.Online())

	up = false
	eng.SyncNow()
	require.False(t, eng.Online())

	up = true
	eng.SyncNow()
	require.True(t, eng.Online())
}
