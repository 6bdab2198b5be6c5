package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"shopkeep/internal/db"
	"shopkeep/internal/game"
	"shopkeep/internal/save"
)

var (
	printOK   = color.New(color.FgGreen).PrintlnFunc()
	printWarn = color.New(color.FgYellow).PrintlnFunc()
)

func main() {
	root := &cobra.Command{
		Use:          "shopkeep-admin",
		Short:        "Operator tooling for the shopkeep save service",
		SilenceUsage: true,
	}

	root.AddCommand(
		newResetDemoCmd(),
		newShowCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func databaseURL() (string, error) {
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL is not set")
	}
	return url, nil
}

func newResetDemoCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-demo",
		Short: "Reset the demo account to a fresh save",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			if env := strings.TrimSpace(os.Getenv("SHOPKEEP_ENV")); env != "" && env != "development" {
				return fmt.Errorf("reset-demo is development-only (SHOPKEEP_ENV=%s)", env)
			}

			url, err := databaseURL()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := db.Connect(ctx, url)
			if err != nil {
				return err
			}
			defer pool.Close()

			state, err := json.Marshal(game.DefaultState(time.Now()))
			if err != nil {
				return err
			}

			tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)

			if _, err := tx.Exec(ctx, `DELETE FROM ops WHERE user_id = $1`, save.DemoUserID); err != nil {
				return fmt.Errorf("clear ops: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, save.DemoUserID); err != nil {
				return fmt.Errorf("ensure user: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO saves (user_id, state_json, version, last_seen_at, updated_at)
				VALUES ($1, $2, 0, NULL, now())
				ON CONFLICT (user_id) DO UPDATE
				SET state_json = EXCLUDED.state_json,
				    version = 0,
				    last_seen_at = NULL,
				    updated_at = now()
			`, save.DemoUserID, state); err != nil {
				return fmt.Errorf("reset save: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return err
			}

			printOK("Demo save reset to version 0.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print an account's committed save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := db.Connect(ctx, url)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := save.NewPGStore(pool)
			snap, err := store.Load(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				if err == save.ErrNotFound {
					printWarn("No save for that user.")
					return nil
				}
				return err
			}

			out, err := json.MarshalIndent(snap.State, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("version: %d\n", snap.Version)
			if snap.LastSeenAt.IsZero() {
				fmt.Println("lastSeenAt: never")
			} else {
				fmt.Printf("lastSeenAt: %s\n", snap.LastSeenAt.UTC().Format(time.RFC3339))
			}
			fmt.Printf("updatedAt: %s\n", snap.UpdatedAt.UTC().Format(time.RFC3339))
			fmt.Println(string(out))
			return nil
		},
	}
}
