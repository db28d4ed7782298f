package universe

import (
	"testing"

	"github.com/oriumgames/systemgroup/internal/apierr"
	"github.com/stretchr/testify/require"
)

func TestRegisterResourceDuplicate(t *testing.T) {
	u := New()
	_, err := u.RegisterResource(ResourceDescriptor{ID: 1})
	require.NoError(t, err)
	_, err = u.RegisterResource(ResourceDescriptor{ID: 1})
	require.ErrorIs(t, err, apierr.Duplicate)
}

func TestUnregisterResourceInUse(t *testing.T) {
	u := New()
	d, err := u.RegisterResource(ResourceDescriptor{ID: 1})
	require.NoError(t, err)
	d.AddRef()
	require.ErrorIs(t, u.UnregisterResource(1), apierr.InUse)
	d.Release()
	require.NoError(t, u.UnregisterResource(1))
}

func TestUnregisterResourceNotFound(t *testing.T) {
	u := New()
	require.ErrorIs(t, u.UnregisterResource(99), apierr.NotFound)
}

func TestRegisterSystemDeadlockExclusiveDuplicate(t *testing.T) {
	u := New()
	_, _ = u.RegisterResource(ResourceDescriptor{ID: 1})
	_, err := u.RegisterSystem(SystemDescriptor{ID: 1, ExclusiveResources: []ResourceID{1, 1}})
	require.ErrorIs(t, err, apierr.Deadlock)
}

func TestRegisterSystemDeadlockExclusiveSharedOverlap(t *testing.T) {
	u := New()
	_, _ = u.RegisterResource(ResourceDescriptor{ID: 1})
	_, err := u.RegisterSystem(SystemDescriptor{ID: 1, ExclusiveResources: []ResourceID{1}, SharedResources: []ResourceID{1}})
	require.ErrorIs(t, err, apierr.Deadlock)
}

func TestRegisterSystemDuplicateSharedResource(t *testing.T) {
	u := New()
	_, _ = u.RegisterResource(ResourceDescriptor{ID: 1})
	_, err := u.RegisterSystem(SystemDescriptor{ID: 1, SharedResources: []ResourceID{1, 1}})
	require.ErrorIs(t, err, apierr.Duplicate)
}

func TestRegisterSystemDeadlockBeforeAfterOverlap(t *testing.T) {
	u := New()
	_, err := u.RegisterSystem(SystemDescriptor{
		ID:     1,
		Before: []Dependency{{Target: 2}},
		After:  []Dependency{{Target: 2}},
	})
	require.ErrorIs(t, err, apierr.Deadlock)
}

func TestRegisterSystemUnknownResource(t *testing.T) {
	u := New()
	_, err := u.RegisterSystem(SystemDescriptor{ID: 1, ExclusiveResources: []ResourceID{42}})
	require.ErrorIs(t, err, apierr.NotFound)
}

func TestRegisterSystemSelfDependencyRejected(t *testing.T) {
	u := New()
	_, err := u.RegisterSystem(SystemDescriptor{ID: 1, Before: []Dependency{{Target: 1}}})
	require.ErrorIs(t, err, apierr.Deadlock)
}

func TestUnregisterSystemInUse(t *testing.T) {
	u := New()
	d, err := u.RegisterSystem(SystemDescriptor{ID: 1})
	require.NoError(t, err)
	d.AddRef()
	require.ErrorIs(t, u.UnregisterSystem(1), apierr.InUse)
	d.Release()
	require.NoError(t, u.UnregisterSystem(1))
}
