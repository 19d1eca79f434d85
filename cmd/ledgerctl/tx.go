package main

import (
	"context"
	"fmt"
	"iter"
	"os"
	"text/tabwriter"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/loworbit/txtrack/internal/infra/ledgerstore"
	"github.com/loworbit/txtrack/internal/platform/txledger"
	"github.com/loworbit/txtrack/pkg/config"
	"github.com/loworbit/txtrack/pkg/logger"
)

// openLedger loads the ledger from the store configured in the environment
func openLedger(ctx context.Context) (*txledger.Ledger, func(), error) {
	cfg := config.FromEnv()
	if err := cfg.ValidateStore(); err != nil {
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.LedgerStore == config.StoreRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL, Password: cfg.RedisPassword})
	}

	store, err := ledgerstore.Open(ctx, cfg, redisClient)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		store.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}

	log := logger.NewWithFormat(cfg.Env, cfg.LogFormat, os.Stderr)
	ledger, err := txledger.NewLedger(ctx, store.Store, clock.New(), log.Logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return ledger, closeAll, nil
}

func newPendingCmd() *cobra.Command {
	var chainID int64

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending transactions of a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			return printRecords(cmd, ledger.ListPending(chainID))
		},
	}

	cmd.Flags().Int64Var(&chainID, "chain", 1, "Chain ID")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List every recorded transaction",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			return printRecords(cmd, ledger.All())
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [tx-hash]",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			rec, ok := ledger.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", txledger.ErrTransactionNotFound, args[0])
			}

			printf(cmd, "ID:        %s\n", rec.ID)
			printf(cmd, "Subject:   %s\n", rec.Subject)
			printf(cmd, "Chain:     %d\n", rec.ChainID)
			printf(cmd, "Account:   %s\n", rec.Account)
			printf(cmd, "Status:    %s\n", statusText(rec.Status))
			printf(cmd, "Submitted: %s\n", rec.SubmittedAt.UTC().Format(time.RFC3339))
			if rec.Reason != "" {
				printf(cmd, "Reason:    %s\n", rec.Reason)
			}
			if !rec.ResolvedAt.IsZero() {
				printf(cmd, "Resolved:  %s\n", rec.ResolvedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func printRecords(cmd *cobra.Command, records iter.Seq[txledger.Record]) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TX_HASH\tSUBJECT\tCHAIN\tSTATUS\tSUBMITTED")

	n := 0
	for rec := range records {
		hash := rec.ID
		if len(hash) > 18 {
			hash = hash[:18] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			hash, rec.Subject, rec.ChainID, statusText(rec.Status), rec.SubmittedAt.UTC().Format(time.RFC3339))
		n++
	}

	if n == 0 {
		printf(cmd, "No transactions found\n")
		return nil
	}
	return w.Flush()
}

func statusText(s txledger.Status) string {
	switch s {
	case txledger.StatusConfirmed:
		return color.GreenString(string(s))
	case txledger.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
