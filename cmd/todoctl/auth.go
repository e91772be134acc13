package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BuzzLyutic/todo-api/internal/client"
)

var errNotLoggedIn = errors.New("not logged in, run `todoctl login <email>` first")

func newRegisterCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if err := s.auth.Register(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Registered and logged in as "+args[0]))
			return nil
		},
	}
}

func newLoginCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if err := s.auth.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Logged in as "+args[0]))
			return nil
		},
	}
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !s.auth.CheckAuth() {
				fmt.Fprintln(cmd.OutOrStdout(), "Already logged out")
				return nil
			}
			// локальная сессия сброшена даже если сервер ответил ошибкой
			if err := s.auth.Logout(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("server logout failed: "+err.Error()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newForgotPasswordCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.api.ForgotPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for this email, a reset link has been sent.")
			return nil
		},
	}
}

func newResetPasswordCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(s); err != nil {
				return err
			}
			password, err := readPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			if err := s.api.ResetPassword(cmd.Context(), password); err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Password updated"))
			return nil
		},
	}
}

func newWhoamiCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(s); err != nil {
				return err
			}
			user, err := s.api.CurrentUser(cmd.Context())
			if err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Email, mutedStyle.Render(user.ID))
			return nil
		},
	}
}

// requireAuth is the gate in front of every protected command.
func requireAuth(s *session) error {
	if !s.auth.CheckAuth() {
		if msg := s.auth.State().Error; msg != "" {
			return fmt.Errorf("%w (%s)", errNotLoggedIn, msg)
		}
		return errNotLoggedIn
	}
	return nil
}

// handleAPIError drops the local session when the server says a new login is needed.
func handleAPIError(s *session, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.RequiresLogin {
		s.auth.Logout(context.Background())
		return fmt.Errorf("%s: %w", apiErr.Message, errNotLoggedIn)
	}
	if errors.Is(err, client.ErrSessionExpired) {
		return errNotLoggedIn
	}
	return err
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
