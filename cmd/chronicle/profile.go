package main

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/chronicle/internal/profile"
)

var (
	profileName     string
	profileEmail    string
	profileBio      string
	profilePassword string
	confirmDelete   bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and manage your account",
	RunE:  showProfile,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your account and articles",
	RunE:  showProfile,
}

func showProfile(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err := env.requireUser(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	overview := profile.NewOverview(env.client, env.store)
	data, err := overview.Load(ctx)
	if err != nil {
		return errors.New(overview.State().Message)
	}

	p := newPrinter(cmd.OutOrStdout())
	p.Header("%s <%s>", data.User.FullName, data.User.Email)
	if bio := strings.TrimSpace(data.User.Bio); bio != "" {
		p.Info("%s", bio)
	}
	p.Info("%d published, %d drafts", len(data.Published()), len(data.Drafts()))
	p.printArticles(data.Articles, true)
	return nil
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change name, email, bio or password",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		if _, err := env.requireUser(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		editor := profile.NewEditor(env.client, env.store)
		if _, err := editor.Load(ctx); err != nil {
			return errors.New(editor.State().Message)
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			editor.Set(profile.FullName, profileName)
		}
		if flags.Changed("email") {
			editor.Set(profile.Email, profileEmail)
		}
		if flags.Changed("bio") {
			editor.Set(profile.Bio, profileBio)
		}
		if flags.Changed("password") {
			editor.Set(profile.Password, profilePassword)
		}

		p := newPrinter(cmd.OutOrStdout())
		if !editor.HasChanges() {
			p.Warn("Nothing to change")
			return nil
		}
		if err := editor.Submit(ctx); err != nil {
			return errors.New(editor.State().Message)
		}
		p.Success("%s", editor.State().Message)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your account and log out",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDelete {
			answer, err := promptLine(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Delete your account? Type yes to confirm")
			if err != nil {
				return err
			}
			if !strings.EqualFold(strings.TrimSpace(answer), "yes") {
				newPrinter(cmd.OutOrStdout()).Warn("Aborted")
				return nil
			}
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		if _, err := env.requireUser(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		editor := profile.NewEditor(env.client, env.store)
		if err := editor.DeleteAccount(ctx); err != nil {
			return errors.New(editor.State().Message)
		}
		newPrinter(cmd.OutOrStdout()).Success("%s", editor.State().Message)
		return nil
	},
}

func init() {
	f := profileUpdateCmd.Flags()
	f.StringVar(&profileName, "name", "", "full name")
	f.StringVar(&profileEmail, "email", "", "email address")
	f.StringVar(&profileBio, "bio", "", "short biography")
	f.StringVar(&profilePassword, "password", "", "new password")

	profileDeleteCmd.Flags().BoolVarP(&confirmDelete, "yes", "y", false, "skip the confirmation prompt")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
