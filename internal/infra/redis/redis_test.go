package redis_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/loworbit/txtrack/internal/infra/redis"
	"github.com/loworbit/txtrack/internal/platform/notifier"
	"github.com/loworbit/txtrack/internal/platform/refresher"
	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// setupTestClient connects to a local Redis on DB 15 and flushes it
func setupTestClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Skipping test: Redis not available")
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatCache_SetAndGet(t *testing.T) {
	client := setupTestClient(t)
	c := rediscache.NewStatCache(client, time.Minute, discard())
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		_, err := c.Get(ctx, "0xabc", 1)
		assert.ErrorIs(t, err, refresher.ErrStatsNotFound)
	})

	t.Run("Round_Trip", func(t *testing.T) {
		huge, _ := new(big.Int).SetString("1000000000000000000000", 10)
		stats := &refresher.Stats{
			Account: "0xABC",
			ChainID: 1,
			Values: map[refresher.Quantity]*big.Int{
				refresher.QuantityBalance: huge,
				refresher.QuantityStaked:  big.NewInt(0),
			},
			BlockNumber: 42,
			RefreshedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, c.Set(ctx, stats))

		got, err := c.Get(ctx, "0xabc", 1)
		require.NoError(t, err)
		assert.Equal(t, huge.String(), got.Value(refresher.QuantityBalance).String())
		assert.Equal(t, "0", got.Value(refresher.QuantityStaked).String())
		assert.Equal(t, uint64(42), got.BlockNumber)
		assert.True(t, got.RefreshedAt.Equal(stats.RefreshedAt))

		ttl, err := client.TTL(ctx, "stats:1:0xabc").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "0xabc", 1))
		_, err := c.Get(ctx, "0xabc", 1)
		assert.ErrorIs(t, err, refresher.ErrStatsNotFound)
	})
}

func TestTxStore_PutAndLoadAll(t *testing.T) {
	client := setupTestClient(t)
	store := rediscache.NewTxStore(client, "")
	ctx := context.Background()

	rec := txledger.Record{
		ID:          "0xaaa",
		Subject:     txledger.SubjectApprove,
		ChainID:     1,
		Account:     "0xabc",
		SubmittedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:      txledger.StatusPending,
	}
	require.NoError(t, store.Put(ctx, rec))
	rec.Status = txledger.StatusConfirmed
	rec.ResolvedAt = rec.SubmittedAt.Add(time.Minute)
	require.NoError(t, store.Put(ctx, rec))

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, txledger.StatusConfirmed, records[0].Status)
	assert.True(t, records[0].ResolvedAt.Equal(rec.ResolvedAt))

	n, err := client.HLen(ctx, rediscache.DefaultRecordsKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTxStore_CorruptField(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.HSet(ctx, rediscache.DefaultRecordsKey, "0xbad", "{").Err())

	_, err := rediscache.NewTxStore(client, "").LoadAll(ctx)
	assert.ErrorIs(t, err, txledger.ErrCorruptRecord)
}

func TestNotificationPublisher_Show(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, rediscache.DefaultNotificationsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := rediscache.NewNotificationPublisher(client, "")
	require.NoError(t, pub.Show(ctx, notifier.Indicator{
		Key:     "0xaaa",
		TxID:    "0xaaa",
		Subject: txledger.SubjectDeposit,
		State:   notifier.StateSuccess,
		Message: "Successfully deposited",
	}))

	select {
	case msg := <-sub.Channel():
		var ind notifier.Indicator
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ind))
		assert.Equal(t, notifier.StateSuccess, ind.State)
		assert.Equal(t, "Successfully deposited", ind.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("indicator was not published")
	}
}
