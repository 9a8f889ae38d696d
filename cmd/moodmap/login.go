package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/moodmap/internal/auth"
)

var (
	loginUser  string
	loginToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store backend credentials for this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginToken == "" {
			return errors.New("--token is required")
		}
		tokens, err := auth.NewTokenCache(cfg.TokenPath)
		if err != nil {
			return err
		}
		if err := auth.Login(tokens, loginUser, loginToken); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", tokens.Path())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored backend credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := auth.NewTokenCache(cfg.TokenPath)
		if err != nil {
			return err
		}
		if err := tokens.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUser, "user", "", "user id")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "access token")
}
