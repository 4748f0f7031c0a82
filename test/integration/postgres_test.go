//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/boutique-orders/internal/analytics"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/pkg/docstore"
	docpg "github.com/dmehra2102/boutique-orders/pkg/docstore/postgres"
)

type note struct {
	Text string `json:"text"`
}

func openPostgres(t *testing.T) (*docpg.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := docpg.NewStore(discard(), pool)
	require.NoError(t, store.Migrate(ctx))
	return store, pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store, _ := openPostgres(t)
	ctx := context.Background()

	var got note
	require.ErrorIs(t, store.Get(ctx, "notes", "missing", &got), docstore.ErrAbsent)

	require.NoError(t, store.Update(ctx, func(tx docstore.Tx) error {
		return tx.Insert(ctx, "notes", "a", note{Text: "first"})
	}))
	require.NoError(t, store.Get(ctx, "notes", "a", &got))
	assert.Equal(t, "first", got.Text)

	err := store.Update(ctx, func(tx docstore.Tx) error {
		return tx.Insert(ctx, "notes", "a", note{Text: "again"})
	})
	assert.ErrorIs(t, err, docstore.ErrExists)

	require.NoError(t, store.Update(ctx, func(tx docstore.Tx) error {
		return tx.Put(ctx, "notes", "a", note{Text: "second"})
	}))
	require.NoError(t, store.Get(ctx, "notes", "a", &got))
	assert.Equal(t, "second", got.Text)
}

func TestPostgresStoreRollsBackOnError(t *testing.T) {
	store, pool := openPostgres(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx docstore.Tx) error {
		if err := tx.Put(ctx, "notes", "rolled-back", note{Text: "x"}); err != nil {
			return err
		}
		if err := tx.Emit(ctx, docstore.Event{AggregateType: "note", AggregateID: "rolled-back", Type: "NoteWritten", Payload: []byte(`{}`)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var got note
	assert.ErrorIs(t, store.Get(ctx, "notes", "rolled-back", &got), docstore.ErrAbsent)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE aggregate_id = 'rolled-back'`).Scan(&n))
	assert.Zero(t, n)
}

func TestPostgresStoreListsCollection(t *testing.T) {
	store, _ := openPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx docstore.Tx) error {
		for _, k := range []string{"x", "y", "z"} {
			if err := tx.Put(ctx, "listed", k, note{Text: k}); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, store.List(ctx, "listed", func(key string, raw []byte) error {
		keys = append(keys, key)
		return nil
	}))
	assert.ElementsMatch(t, []string{"x", "y", "z"}, keys)
}

func TestConcurrentCreditsOnNewAccountAllLand(t *testing.T) {
	store, _ := openPostgres(t)
	ctx := context.Background()
	ledger := loyalty.NewLedger(discard(), store)

	amounts := []int{42, 45, 10, 7, 3, 100}
	var wg sync.WaitGroup
	errs := make(chan error, len(amounts))
	for _, n := range amounts {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := ledger.Credit(ctx, "brand_new_handle", n, "order:concurrent")
			errs <- err
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	account, err := ledger.Get(ctx, "brand_new_handle")
	require.NoError(t, err)
	assert.Equal(t, 207, account.Points)
	assert.Len(t, account.History, len(amounts))
}

func TestConcurrentFirstVisitsAllCounted(t *testing.T) {
	store, _ := openPostgres(t)
	ctx := context.Background()
	tracker := analytics.NewTracker(store)
	before, err := tracker.Snapshot(ctx)
	require.NoError(t, err)

	const visits = 10
	var wg sync.WaitGroup
	for i := 0; i < visits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.RecordVisit(ctx))
		}()
	}
	wg.Wait()

	after, err := tracker.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Visits+visits, after.Visits)
}
