package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mealog/internal/api"
	internalauth "mealog/internal/auth"
	"mealog/internal/config"
	"mealog/internal/media"
)

func newImageCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Ingest meal photos",
	}
	cmd.AddCommand(newImageIngestCmd(cfg))
	cmd.AddCommand(newImageUploadCmd(cfg))
	return cmd
}

// newImageIngestCmd runs the upload pipeline against the configured store
// without an HTTP server. The stored path can be attached to a meal later,
// by --owner or, when no owner is given, by an admin.
func newImageIngestCmd(cfg *config.Config) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Transcode and store one image file locally",
		Args:  requireExactlyArgs(1, "file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			var uploaderID int64
			if owner != "" {
				username, err := internalauth.NormalizeUsername(owner)
				if err != nil {
					return err
				}
				user, err := rt.store.GetUserByUsername(cmd.Context(), username)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %q not found", username)
				}
				uploaderID = user.ID
			}

			stored, err := rt.ingest.Ingest(cmd.Context(), media.Upload{
				Filename:     filepath.Base(args[0]),
				Data:         data,
				DeclaredSize: int64(len(data)),
				UploaderID:   uploaderID,
			})
			if err != nil {
				return err
			}
			return writeStoredImage(stored)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "username allowed to attach the stored image")
	return cmd
}

func newImageUploadCmd(cfg *config.Config) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload one image file to a running server",
		Args:  requireExactlyArgs(1, "file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			password, err := readPasswordStdin(cmd, passwordStdin)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			client := api.NewClient(cfg.APIURL)
			if _, err := client.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			resp, err := client.Upload(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return writeOutput(resp, func() error {
				return writePlain("%s\n", resp.Path)
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account to upload as")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}
