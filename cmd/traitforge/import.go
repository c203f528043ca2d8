package main

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"traitforge/internal/blob"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Upload a local trait tree into the configured blob store",
		Long: `import walks <dir> and stores every non-hidden file under its relative
path. Keys that already exist are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			var stored, skipped int
			var total uint64
			err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if strings.HasPrefix(d.Name(), ".") && p != src {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					return nil
				}
				rel, err := filepath.Rel(src, p)
				if err != nil {
					return err
				}
				key := filepath.ToSlash(rel)
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				info, err := a.store.Put(cmd.Context(), key, f, blob.PutOptions{ContentType: mime.TypeByExtension(filepath.Ext(p))})
				if errors.Is(err, blob.ErrExists) {
					skipped++
					return nil
				}
				if err != nil {
					return fmt.Errorf("store %s: %w", key, err)
				}
				stored++
				total += uint64(info.Size)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d files (%s), skipped %d existing\n", stored, humanize.Bytes(total), skipped)
			return nil
		},
	}
}
