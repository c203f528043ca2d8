package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"traitforge/internal/config"
	"traitforge/internal/grant"
)

func newGrantCmd() *cobra.Command {
	var (
		guild, gender string
		ttl           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "grant <token>",
		Short: "Issue a signed grant for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.GrantSecret == "" {
				return errors.New("TRAITFORGE_GRANT_SECRET is required to issue grants")
			}
			iss, err := grant.NewIssuer(cfg.GrantSecret, nil)
			if err != nil {
				return err
			}
			signed, err := iss.Issue(id, guild, gender, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&guild, "guild", "", "guild the grant covers")
	cmd.Flags().StringVar(&gender, "gender", "", "gender the grant covers")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "grant lifetime")
	return cmd
}
