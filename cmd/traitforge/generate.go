package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var (
		flags tokenFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "render <token>",
		Short: "Render a token image to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			res, err := a.gen.Generate(cmd.Context(), id, opts)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("token-%d.png", id)
			}
			if err := os.WriteFile(out, res.Image, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			note := ""
			if res.Placeholder {
				note = " (placeholder)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s, %d layers, sha256 %s%s\n",
				out, humanize.Bytes(uint64(len(res.Image))), len(res.Plan.Layers), res.Digest, note)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default token-<id>.png)")
	return cmd
}

func newAttributesCmd() *cobra.Command {
	var flags tokenFlags
	cmd := &cobra.Command{
		Use:   "attributes <token>",
		Short: "Print token attributes as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			attrs, err := a.gen.BuildAttributes(cmd.Context(), id, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(attrs)
		},
	}
	flags.register(cmd)
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Regenerate a minted token and compare it with the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			res, rec, ok, err := a.gen.Verify(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("token %d: digest %s does not match recorded %s", id, res.Digest, rec.Digest)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token %d matches its record (minted %s)\n", id, humanize.Time(rec.CreatedAt))
			return nil
		},
	}
}
