package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/chronicle/internal/auth"
	"github.com/pders01/chronicle/internal/storage"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
)

// promptLine reads one line from in after printing label, for values not
// given as flags.
func promptLine(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label+": ")
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func credentials(cmd *cobra.Command, in *bufio.Reader) (string, string, error) {
	email, password := loginEmail, loginPassword
	var err error
	if email == "" {
		if email, err = promptLine(in, cmd.OutOrStdout(), "Email"); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = promptLine(in, cmd.OutOrStdout(), "Password"); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := credentials(cmd, bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return err
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := commandContext()
		defer cancel()

		flow := auth.New(env.client, env.store)
		user, err := flow.Login(ctx, email, password)
		if err != nil {
			return errors.New(flow.State().Message)
		}
		newPrinter(cmd.OutOrStdout()).Success("%s, %s (user #%d)", flow.State().Message, user.FullName, user.ID)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		name := registerName
		var err error
		if name == "" {
			if name, err = promptLine(in, cmd.OutOrStdout(), "Full name"); err != nil {
				return err
			}
		}
		email, password, err := credentials(cmd, in)
		if err != nil {
			return err
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := commandContext()
		defer cancel()

		flow := auth.New(env.client, env.store)
		if _, err := flow.Register(ctx, name, email, password); err != nil {
			return errors.New(flow.State().Message)
		}
		newPrinter(cmd.OutOrStdout()).Success("%s", flow.State().Message)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if err := auth.New(env.client, env.store).Logout(); err != nil {
			return err
		}
		newPrinter(cmd.OutOrStdout()).Success(auth.MsgLoggedOut)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		p := newPrinter(cmd.OutOrStdout())
		id, err := env.store.UserID()
		if err != nil {
			return err
		}
		if id == storage.NoUser {
			p.Warn("Not logged in")
			return nil
		}

		ctx, cancel := commandContext()
		defer cancel()

		user, err := env.client.GetUser(ctx, id)
		if err != nil {
			p.Info("user #%d (offline)", id)
			return nil
		}
		p.Info("%s <%s> (user #%d)", user.FullName, user.Email, user.ID)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "account email")
		c.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when omitted)")
	}
	registerCmd.Flags().StringVar(&registerName, "name", "", "full name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
