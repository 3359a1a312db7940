package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	internalauth "mealog/internal/auth"
	"mealog/internal/config"
	"mealog/internal/models"
	"mealog/internal/store"
)

func newUserCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the local database",
	}
	cmd.AddCommand(newUserAddCmd(cfg))
	cmd.AddCommand(newUserListCmd(cfg))
	cmd.AddCommand(newUserPasswdCmd(cfg))
	cmd.AddCommand(newUserDeleteCmd(cfg))
	return cmd
}

func newUserAddCmd(cfg *config.Config) *cobra.Command {
	var passwordStdin bool
	var admin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one account",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			hash, err := hashPasswordFromStdin(cmd, passwordStdin)
			if err != nil {
				return err
			}
			role := models.RoleUser
			if admin {
				role = models.RoleAdmin
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.CreateUser(cmd.Context(), username, hash, role, time.Now().UTC())
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("user %s already exists", username)
			}
			if err != nil {
				return err
			}
			return writeOutput(user, func() error {
				return writePlain("created %s user %s (%d)\n", user.Role, user.Username, user.ID)
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}

func newUserListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return writeUsers(users)
		},
	}
}

func newUserPasswdCmd(cfg *config.Config) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset the password of one account",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := hashPasswordFromStdin(cmd, passwordStdin)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := lookupUser(cmd, st, args[0])
			if err != nil {
				return err
			}
			if err := st.SetUserPassword(cmd.Context(), user.ID, hash); err != nil {
				return err
			}
			return writePlain("password updated for %s\n", user.Username)
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newUserDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <username>",
		Aliases: []string{"rm"},
		Short:   "Delete one account with its meals and their images",
		Args:    requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			user, err := lookupUser(cmd, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.lifecycle.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			return writePlain("deleted user %s\n", user.Username)
		},
	}
}

func lookupUser(cmd *cobra.Command, st *store.Store, raw string) (*models.User, error) {
	username, err := internalauth.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	user, err := st.GetUserByUsername(cmd.Context(), username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return user, nil
}

func hashPasswordFromStdin(cmd *cobra.Command, passwordStdin bool) (string, error) {
	password, err := readPasswordStdin(cmd, passwordStdin)
	if err != nil {
		return "", err
	}
	return internalauth.HashPassword(password)
}

func readPasswordStdin(cmd *cobra.Command, passwordStdin bool) (string, error) {
	if !passwordStdin {
		return "", fmt.Errorf("--password-stdin is required")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
