package app

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quantum-dashboard/internal/model"
	"quantum-dashboard/internal/repository"
	"quantum-dashboard/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	jobs     *repository.JobRepository
	backends *repository.BackendRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		jobs:     repository.NewJobRepository(db),
		backends: repository.NewBackendRepository(db),
	}
	require.NoError(t, NewBackendService(f.backends).Seed())
	return f
}

func (f *fixture) user(t *testing.T, name string, role model.UserRole) Actor {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	require.NoError(t, f.users.Create(u))
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
