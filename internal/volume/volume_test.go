package volume

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"stackctl/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records Ensure/Remove calls and simulates engine-style
// idempotent creation.
type fakeBackend struct {
	mu          sync.Mutex
	ensureCalls map[string]int
	removeCalls map[string]int
	existing    map[string]bool
	ensureErr   error
	removeErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ensureCalls: make(map[string]int),
		removeCalls: make(map[string]int),
		existing:    make(map[string]bool),
	}
}

func (f *fakeBackend) Ensure(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls[name]++
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	f.existing[name] = true
	return "stack-" + name, nil
}

func (f *fakeBackend) Remove(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls[name]++
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.existing, name)
	return nil
}

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	reg, err := config.Parse([]byte(`
services:
  - name: postgres
    image: postgres:16
    volumes:
      - name: pgdata
        mountPath: /var/lib/postgresql/data
  - name: neo4j
    image: neo4j:5
    volumes:
      - name: graphdata
        mountPath: /data
`))
	require.NoError(t, err)
	return reg
}

func TestManager_ResolveCreatesOnFirstUse(t *testing.T) {
	backend := newFakeBackend()
	mgr := NewManager(testRegistry(t), backend)

	mount, err := mgr.Resolve(context.Background(), config.VolumeBinding{
		Name: "pgdata", MountPath: "/var/lib/postgresql/data",
	})
	require.NoError(t, err)

	assert.Equal(t, "pgdata", mount.Volume)
	assert.Equal(t, "stack-pgdata", mount.Source)
	assert.Equal(t, "/var/lib/postgresql/data", mount.Target)
	assert.Equal(t, 1, backend.ensureCalls["pgdata"])
}

func TestManager_ResolveIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	mgr := NewManager(testRegistry(t), backend)
	binding := config.VolumeBinding{Name: "pgdata", MountPath: "/var/lib/postgresql/data"}

	first, err := mgr.Resolve(context.Background(), binding)
	require.NoError(t, err)

	// Repeated resolution, as happens on every service restart, returns
	// the same mount and leaves the backend alone.
	for i := 0; i < 5; i++ {
		again, err := mgr.Resolve(context.Background(), binding)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, backend.ensureCalls["pgdata"])
	assert.Equal(t, 0, backend.removeCalls["pgdata"], "restarts never delete volume state")
}

func TestManager_ResolveAll(t *testing.T) {
	backend := newFakeBackend()
	reg := testRegistry(t)
	mgr := NewManager(reg, backend)

	pg, ok := reg.Get("postgres")
	require.True(t, ok)

	mounts, err := mgr.ResolveAll(context.Background(), pg)
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.Equal(t, "stack-pgdata", mounts[0].Source)

	// No volumes -> no mounts, no backend calls.
	none, err := mgr.ResolveAll(context.Background(), config.ServiceSpec{Name: "plain"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestManager_ResolveError(t *testing.T) {
	backend := newFakeBackend()
	backend.ensureErr = errors.New("engine unavailable")
	mgr := NewManager(testRegistry(t), backend)

	_, err := mgr.Resolve(context.Background(), config.VolumeBinding{Name: "pgdata", MountPath: "/data"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `resolving volume "pgdata"`)
}

func TestManager_PurgeRemovesAllDeclared(t *testing.T) {
	backend := newFakeBackend()
	mgr := NewManager(testRegistry(t), backend)

	// Only one of the two declared volumes was resolved in this run;
	// purge still has to remove both.
	_, err := mgr.Resolve(context.Background(), config.VolumeBinding{Name: "pgdata", MountPath: "/d"})
	require.NoError(t, err)

	require.NoError(t, mgr.Purge(context.Background()))
	assert.Equal(t, 1, backend.removeCalls["pgdata"])
	assert.Equal(t, 1, backend.removeCalls["graphdata"])
}

func TestManager_PurgeReportsEveryFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.removeErr = fmt.Errorf("volume busy")
	mgr := NewManager(testRegistry(t), backend)

	err := mgr.Purge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"pgdata"`)
	assert.Contains(t, err.Error(), `"graphdata"`)
	// Purge does not stop at the first failure.
	assert.Equal(t, 1, backend.removeCalls["pgdata"])
	assert.Equal(t, 1, backend.removeCalls["graphdata"])
}

func TestManager_Declared(t *testing.T) {
	mgr := NewManager(testRegistry(t), newFakeBackend())
	assert.Equal(t, []string{"pgdata", "graphdata"}, mgr.Declared())
}
