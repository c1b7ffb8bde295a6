package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stonksnote/internal/database"
	"stonksnote/internal/fixtures"
	"stonksnote/internal/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load catalog and permission fixtures into the stonksnote database",
		Long: `Seed reads a YAML fixture file and inserts the brokers, exchanges,
equities, permissions and groups it lists. Rows that already exist are
left alone; group permissions are replaced with the file's grants.

The database is selected with the same DB_* environment variables the
API server uses.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(os.Getenv("ENV"), nil)
		},
	}

	cmd.AddCommand(
		newLoadCmd(),
		newCodesCmd(),
	)
	return cmd
}

func newLoadCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Apply a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := fixtures.Load(args[0])
			if err != nil {
				return err
			}

			cfg, err := database.NewConfig()
			if err != nil {
				return fmt.Errorf("database config: %w", err)
			}
			mgr, err := database.NewManager(cfg)
			if err != nil {
				return err
			}
			defer mgr.Close()

			if migrate {
				if err := mgr.Migrate(); err != nil {
					return err
				}
			}

			sum, err := fixtures.Apply(mgr.DB(), file)
			if err != nil {
				return fmt.Errorf("apply %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "bring the schema up to date before loading")
	return cmd
}

// newCodesCmd prints the permission codes a fixture file defines without
// touching the database.
func newCodesCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "codes <file.yaml>",
		Short: "List the permission codes in a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := fixtures.Load(args[0])
			if err != nil {
				return err
			}

			codes := file.PermissionCodes()
			if group != "" {
				codes = nil
				for _, g := range file.Groups {
					if strings.EqualFold(g.Name, group) {
						codes = file.GroupCodes(g)
						break
					}
				}
				if codes == nil {
					return fmt.Errorf("group %q not found in %s", group, args[0])
				}
			}

			for _, code := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only list the codes this group grants")
	return cmd
}
