package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLockRejectsConcurrentHolders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewActionLock(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	release, err := lock.Acquire(ctx, ModuleCertificate, id)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, ModuleCertificate, id)
	require.ErrorIs(t, err, ErrActionInFlight)

	other, err := lock.Acquire(ctx, ModuleRoleRequest, id)
	require.NoError(t, err)
	other()

	release()
	again, err := lock.Acquire(ctx, ModuleCertificate, id)
	require.NoError(t, err)
	again()
}

func TestActionLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewActionLock(client, time.Second)
	id := uuid.New()

	stale, err := lock.Acquire(context.Background(), ModuleCertificate, id)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lock.Acquire(context.Background(), ModuleCertificate, id)
	require.NoError(t, err)

	// releasing the expired holder must not drop the new holder's lock
	stale()
	assert.True(t, mr.Exists(ActionLockKey(ModuleCertificate, id)))
	fresh()
	assert.False(t, mr.Exists(ActionLockKey(ModuleCertificate, id)))
}

func TestNilActionLockIsNoop(t *testing.T) {
	var lock *ActionLock
	release, err := lock.Acquire(context.Background(), ModuleCertificate, uuid.New())
	require.NoError(t, err)
	release()
}

func TestNormalisePage(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, PerPage: 20}, NormalisePage(0, 0))
	assert.Equal(t, PageRequest{Page: 3, PerPage: 100}, NormalisePage(3, 500))
	assert.Equal(t, 40, NormalisePage(3, 20).Offset())
	assert.Equal(t, 3, NewPagination(1, 20, 41).TotalPages)
}

func TestPrincipalHasRole(t *testing.T) {
	p := &Principal{Role: RoleFaculty}
	assert.True(t, p.HasRole(ReviewerRoles()...))
	assert.False(t, p.HasRole(RoleAdmin))
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasRole(RoleAdmin))
	assert.False(t, Role("owner").Valid())
}
