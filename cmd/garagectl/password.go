package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ukydev/garage/internal/auth"
)

// hashPasswordCmd prints a bcrypt hash for ADMIN_PASSWORD_HASH or an operator
// entry of the config file. The password is read from stdin when not given.
func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-password [password]",
		Short:       "Hash an operator password",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipStore: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
