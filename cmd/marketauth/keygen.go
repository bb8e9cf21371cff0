package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Agossa1/marketauth/token"
)

func newKeygenCmd(a *app) *cobra.Command {
	var (
		file   string
		rotate bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the token key file, or print the fingerprint of an existing one",
		Long: `Create the token sealing key file when it does not exist and print its
fingerprint. An existing file is left untouched unless --rotate is given.

Rotating the key invalidates every outstanding access, refresh and
one-time token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = a.settings.Auth.Token.KeyFile
			}
			if file == "" {
				return errors.New("no key file configured; pass --file")
			}
			if a.settings.Auth.Token.Key != "" {
				fmt.Fprintln(a.stderr, "warning: token.key is set and takes precedence over the key file")
			}

			if rotate {
				if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("remove old key: %w", err)
				}
			}

			fp, err := token.NewKeyProvider(token.KeyConfig{KeyFile: file}).Fingerprint()
			if err != nil {
				return err
			}
			a.logger.Info("token key ready")
			fmt.Fprintf(a.stdout, "key file:    %s\nfingerprint: %s\n", file, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "key file path (default: token.key_file from config)")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "replace an existing key with a new one")
	return cmd
}
