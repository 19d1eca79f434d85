//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*TxRecordRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))
	return NewTxRecordRepository(testDB.Pool), ctx
}

func TestTxRecordRepository_PutAndLoadAll(t *testing.T) {
	repo, ctx := setupTest(t)

	submitted := time.Date(2021, 6, 1, 12, 0, 0, 123_456_789, time.UTC)
	require.NoError(t, repo.Put(ctx, txledger.Record{
		ID:          "0xbbb",
		Subject:     txledger.SubjectDeposit,
		ChainID:     1,
		Account:     "0xabc",
		SubmittedAt: submitted.Add(time.Second),
		Status:      txledger.StatusPending,
	}))
	require.NoError(t, repo.Put(ctx, txledger.Record{
		ID:          "0xaaa",
		Subject:     txledger.SubjectApprove,
		ChainID:     1,
		Account:     "0xabc",
		SubmittedAt: submitted,
		Status:      txledger.StatusPending,
	}))

	records, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "0xaaa", records[0].ID)
	assert.Equal(t, "0xbbb", records[1].ID)
	assert.True(t, records[0].SubmittedAt.Equal(submitted.Truncate(time.Millisecond)))
	assert.True(t, records[0].ResolvedAt.IsZero())
}

func TestTxRecordRepository_TerminalRowsAreNotRewritten(t *testing.T) {
	repo, ctx := setupTest(t)

	rec := txledger.Record{
		ID:          "0x1",
		Subject:     txledger.SubjectWithdraw,
		ChainID:     1,
		SubmittedAt: time.Now(),
		Status:      txledger.StatusPending,
	}
	require.NoError(t, repo.Put(ctx, rec))

	rec.Status = txledger.StatusFailed
	rec.Reason = "nothing to withdraw"
	rec.ResolvedAt = time.Now()
	require.NoError(t, repo.Put(ctx, rec))

	rec.Status = txledger.StatusConfirmed
	rec.Reason = ""
	require.NoError(t, repo.Put(ctx, rec))

	records, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, txledger.StatusFailed, records[0].Status)
	assert.Equal(t, "nothing to withdraw", records[0].Reason)
	assert.False(t, records[0].ResolvedAt.IsZero())
}

func TestTxRecordRepository_LedgerReload(t *testing.T) {
	repo, ctx := setupTest(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMock()
	clk.Set(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))

	ledger, err := txledger.NewLedger(ctx, repo, clk, logger)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, txledger.SubjectMigrate, 56, txledger.Submission{ID: "0xm", ChainID: 56, Account: "0xA"})
	require.NoError(t, err)

	reloaded, err := txledger.NewLedger(ctx, repo, clk, logger)
	require.NoError(t, err)

	var pending []string
	for r := range reloaded.ListPending(56) {
		pending = append(pending, r.ID)
	}
	assert.Equal(t, []string{"0xm"}, pending)
}
