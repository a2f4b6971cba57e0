package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/admission"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		path         string
		force        bool
		hashPassword bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		Long: `Writes an example YAML config with every key at its default.

With --hash-password, reads a password from stdin, prints its argon2id hash
and stores the hash in the config instead of a plaintext password.`,
		Example: `  fuelgate init
  fuelgate init --config /etc/fuelgate.yaml
  echo -n 's3cret' | fuelgate init --hash-password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			var hash string
			if hashPassword {
				pw, err := readPassword(cmd)
				if err != nil {
					return err
				}
				hash, err = admission.HashPassword(pw)
				if err != nil {
					return fmt.Errorf("hashing password: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
			}

			if err := config.WriteExample(path, hash); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "config", "fuelgate.yaml", "where to write the config")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&hashPassword, "hash-password", false, "read a password from stdin and store its argon2id hash")

	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return pw, nil
}
