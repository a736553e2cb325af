package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/auth"
	"github.com/felixgeelhaar/kata/internal/config"
	"github.com/felixgeelhaar/kata/internal/queue"
	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
	"github.com/felixgeelhaar/kata/internal/telemetry"
)

var (
	tokenTTL       time.Duration
	ingestWorkers  int
	ingestPrefetch int
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store the sync token used to send practice records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secretsStore()
		if err != nil {
			return err
		}
		if auth.Expired(args[0], time.Now()) {
			return auth.ErrTokenExpired
		}
		if err := store.Save(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Sync token saved")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored sync token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secretsStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send practice records the record queue has not received yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telemetry.AMQPURL == "" {
			return errors.New("telemetry.amqp_url is not configured")
		}
		store, err := secretsStore()
		if err != nil {
			return err
		}
		credential, err := store.Credential()
		if err != nil {
			return fmt.Errorf("%w (run 'kata login <token>')", err)
		}

		db, err := sqlite.Open(cfg.Telemetry.SQLitePath)
		if err != nil {
			return fmt.Errorf("open statistics: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate statistics: %w", err)
		}

		conn, err := queue.NewConnection(cfg.Telemetry.AMQPURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		local := telemetry.NewSQLiteSink(sqlite.NewRecordStore(db))
		n, err := local.Sync(cmd.Context(), telemetry.NewQueueSink(conn), credential)
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d record(s)\n", n)
		return err
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <learner>",
	Short: "Issue a sync token for a learner (aggregation host)",
	Long: `Signs a token with the signing key stored under sync.signing_key in
secrets.yaml. Hand the token to the learner for 'kata login'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telemetry.SigningKey == "" {
			return errors.New("sync.signing_key is not set in secrets.yaml")
		}
		token, err := auth.NewSigner(cfg.Telemetry.SigningKey).Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store queued practice records in Postgres (aggregation host)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tc := cfg.Telemetry
		switch {
		case tc.AMQPURL == "":
			return errors.New("telemetry.amqp_url is not configured")
		case tc.PostgresDSN == "":
			return errors.New("telemetry.postgres_dsn is not configured")
		case tc.SigningKey == "":
			return errors.New("sync.signing_key is not set in secrets.yaml")
		}

		logs, err := setupLogging("ingest", cfg.Daemon.LogLevel, os.Stderr)
		if err != nil {
			return err
		}
		defer logs.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink, err := telemetry.NewPostgresSink(ctx, tc.PostgresDSN, tc.PostgresTable)
		if err != nil {
			return err
		}
		defer sink.Close()

		conn, err := queue.NewConnection(tc.AMQPURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		signer := auth.NewSigner(tc.SigningKey)
		consumer := queue.NewConsumer(conn, queue.RecordQueueName,
			telemetry.IngestHandler(sink, signer.Verify),
			queue.ConsumerConfig{Workers: ingestWorkers, Prefetch: ingestPrefetch},
		)
		if err := consumer.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		consumer.Stop()
		slog.Info("ingest stopped")
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 90*24*time.Hour, "token lifetime")
	defaults := queue.DefaultConsumerConfig()
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", defaults.Workers, "concurrent handlers")
	ingestCmd.Flags().IntVar(&ingestPrefetch, "prefetch", defaults.Prefetch, "unacknowledged messages per channel")
	rootCmd.AddCommand(loginCmd, logoutCmd, syncCmd, tokenCmd, ingestCmd)
}

func secretsStore() (*auth.SecretsStore, error) {
	path, err := config.SecretsPath()
	if err != nil {
		return nil, err
	}
	return auth.NewSecretsStore(path), nil
}
