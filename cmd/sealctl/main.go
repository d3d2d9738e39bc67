// Command sealctl runs operator tasks against a configured deployment:
// role assignment, analytics backfill and export reconciliation, and dev tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"sealdeal-backend/internal/bootstrap"
	"sealdeal-backend/internal/shared/auth"
	"sealdeal-backend/internal/shared/config"
	"sealdeal-backend/internal/shared/telemetry"
)

var rootCmd = &cobra.Command{
	Use:           "sealctl",
	Short:         "Operator tasks for the deal analysis backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role [uid] [role]",
	Short: "Assign admin, benchmarking_admin or analyst to a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetRole,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Create analytics rows for analyses stored without one",
	Long: `Finds analyses that have no flat analytics row, writes the row and
exports it. Analyses that already have a row are skipped.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Export analytics rows the warehouse has not received",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

var tokenCmd = &cobra.Command{
	Use:   "token [uid]",
	Short: "Sign an identity token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().String("name", "", "name claim")
	rootCmd.AddCommand(setRoleCmd, backfillCmd, reconcileCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, false))
		os.Exit(1)
	}
}

func buildApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		return nil, eris.Wrap(err, "init logger")
	}
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "build app")
	}
	return app, nil
}

func runSetRole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	if err := app.Users.AssignRole(ctx, args[0], args[1]); err != nil {
		return eris.Wrapf(err, "set role %s for %s", args[1], args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully set role %s for user %s\n", args[1], args[0])
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	n, err := app.Analyses.Backfill(ctx)
	if err != nil {
		return eris.Wrapf(err, "backfill after %d analyses", n)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backfilled %d analyses\n", n)
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	n, err := app.Analytics.Reconcile(ctx)
	if err != nil {
		return eris.Wrapf(err, "reconcile after %d rows", n)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows\n", n)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	tokens, err := auth.NewTokens(cfg.Env, cfg.JWTSecret)
	if err != nil {
		return err
	}
	tok, err := tokens.Sign(args[0], email, name)
	if err != nil {
		return eris.Wrap(err, "sign token")
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
