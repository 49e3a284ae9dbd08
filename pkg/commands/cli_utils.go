package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/commands/common"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

// NewRootCommand builds the operator CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "command",
		Short:         "Admin portal maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newOutboxCmd(),
		newCheckTrKeysCmd(),
	)
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		configuration.Use().Unload()
		os.Exit(1)
	}
	configuration.Use().Unload()
}

// withApp runs fn against a fully loaded application and closes the pool afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app application.Application) error) error {
	ctx := cmd.Context()
	app, pool, err := common.NewApplicationWithDefaults(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, app)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration of every module",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, MigrateUp)
			},
		},
		&cobra.Command{
			Use:   "down [module]",
			Short: "Roll back the newest migration of a module",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				module := ""
				if len(args) == 1 {
					module = args[0]
				}
				return withApp(cmd, func(ctx context.Context, app application.Application) error {
					return MigrateDown(ctx, app, module)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, app application.Application) error {
					return MigrateStatus(ctx, app, cmd.OutOrStdout())
				})
			},
		},
	)
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with the operator tenant and optional tenants from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app application.Application) error {
				return SeedDatabase(ctx, app, file)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", configuration.Use().SeedFile, "YAML file listing tenants to provision")
	return cmd
}

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "relay",
		Short: "Run the outbox relay and cleaner in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app application.Application) error {
				conf := configuration.Use()
				return RunOutbox(ctx, conf, app.DB(), app.EventPublisher(), conf.Logger())
			})
		},
	})
	return cmd
}

func newCheckTrKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check_tr_keys [dir]",
		Short: "Check that every translation key used in code exists in all locales",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return CheckTrKeys(root)
		},
	}
}
