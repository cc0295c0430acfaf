package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fentz26/taskflow/internal/api"
	"github.com/fentz26/taskflow/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the task-management backend",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored credential",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

var (
	loginUsername string
	loginPassword string

	registerReq auth.RegisterRequest
)

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (read from stdin when omitted)")
	loginCmd.MarkFlagRequired("username")

	registerCmd.Flags().StringVarP(&registerReq.Username, "username", "u", "", "Username (required)")
	registerCmd.Flags().StringVar(&registerReq.Email, "email", "", "Email address (required)")
	registerCmd.Flags().StringVarP(&registerReq.Password, "password", "p", "", "Password (read from stdin when omitted)")
	registerCmd.Flags().StringVar(&registerReq.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerReq.LastName, "last-name", "", "Last name")
	registerCmd.MarkFlagRequired("username")
	registerCmd.MarkFlagRequired("email")
}

func readPassword(cmd *cobra.Command, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required")
	}
	return line, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, loginPassword)
	if err != nil {
		return err
	}
	return withApp(cmd, false, func(a *app) error {
		session, err := a.session.Login(cmd.Context(), loginUsername, password)
		if err != nil {
			if errors.Is(err, api.ErrInvalidCredentials) {
				return fmt.Errorf("invalid username or password")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", session.User.Username)
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, registerReq.Password)
	if err != nil {
		return err
	}
	req := registerReq
	req.Password = password
	req.PasswordConfirm = password

	return withApp(cmd, false, func(a *app) error {
		session, err := a.session.Register(cmd.Context(), req)
		if err != nil {
			var verr *api.ValidationError
			if errors.As(err, &verr) {
				printFieldErrors(cmd.ErrOrStderr(), verr)
				return fmt.Errorf("registration rejected")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", session.User.Username)
		return nil
	})
}

func printFieldErrors(w io.Writer, verr *api.ValidationError) {
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, verr.Fields[f])
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(a *app) error {
		if err := a.session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		user, err := a.session.Profile(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:        %d\n", user.ID)
		fmt.Fprintf(out, "Username:  %s\n", user.Username)
		fmt.Fprintf(out, "Email:     %s\n", user.Email)
		if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
			fmt.Fprintf(out, "Name:      %s\n", name)
		}
		if tok := a.session.Token(); tok != nil && !tok.Expiry.IsZero() {
			fmt.Fprintf(out, "Expires:   %s\n", tok.Expiry.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}
