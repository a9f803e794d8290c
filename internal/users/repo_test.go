package users

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testRepo(t *testing.T) *Repo {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return &Repo{DB: pool}
}

func createUser(t *testing.T, r *Repo) User {
	suffix := time.Now().UnixNano()
	u := User{Username: fmt.Sprintf("u%d", suffix), Email: fmt.Sprintf("u%d@example.com", suffix)}
	require.NoError(t, r.CreateUser(context.Background(), &u, "hash"))
	return u
}

func TestRepoDuplicateEmail(t *testing.T) {
	r := testRepo(t)
	u := createUser(t, r)
	dup := User{Username: u.Username + "x", Email: u.Email}
	err := r.CreateUser(context.Background(), &dup, "hash")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRepoSetDefaultIsolated(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	alice, bob := createUser(t, r), createUser(t, r)

	add := func(userID int64, def bool) Address {
		a := Address{UserID: userID, FullName: "n", Phone: "p", Address: "a", City: "c", Country: "CI", Type: AddressHome, IsDefault: def}
		require.NoError(t, r.AddAddress(ctx, &a))
		return a
	}
	a1, a2, a3 := add(alice.ID, true), add(alice.ID, false), add(alice.ID, false)
	b1 := add(bob.ID, true)

	var g errgroup.Group
	for _, id := range []int64{a2.ID, a3.ID, a2.ID, a3.ID} {
		id := id
		g.Go(func() error {
			_, err := r.SetDefault(ctx, alice.ID, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	list, err := r.ListAddresses(ctx, alice.ID)
	require.NoError(t, err)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
			assert.NotEqual(t, a1.ID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	bobs, err := r.ListAddresses(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.True(t, bobs[0].IsDefault)

	_, err = r.SetDefault(ctx, alice.ID, b1.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
