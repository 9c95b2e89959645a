package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type ManagersCmd struct{}

func NewManagersCmd() *ManagersCmd {
	return &ManagersCmd{}
}

func (c *ManagersCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "managers",
		Short: "List employee codes of the latest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			all, err := cmd.Flags().GetBool("include-non-managers")
			if err != nil {
				return fmt.Errorf("failed to get include-non-managers flag: %w", err)
			}

			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			managers, err := listManagers(ctx, cfg, log, limit, !all)
			if err != nil {
				return err
			}

			for _, m := range managers {
				fmt.Println(m)
			}

			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of codes, 0 for all")
	cmd.Flags().Bool("include-non-managers", false, "also list employees with no reports")

	return cmd
}
