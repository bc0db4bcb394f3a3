package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/db/sqlite"
	"github.com/lthummus/loginguard/internal/user"
)

var (
	newUsername string
	newDisabled bool
)

func init() {
	userAddCmd.Flags().StringVarP(&newUsername, "username", "u", "", "username to create")
	userAddCmd.Flags().BoolVar(&newDisabled, "disabled", false, "create the account disabled")
	_ = userAddCmd.MarkFlagRequired("username")
}

var userAddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "creates a user",
	Long:  "creates a user in the configured database. The password is read from the first line of stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return fmt.Errorf("loginguard: useradd: could not read config: %w", err)
		}

		password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && password == "" {
			return fmt.Errorf("loginguard: useradd: could not read password: %w", err)
		}
		password = strings.TrimRight(password, "\r\n")

		u := &user.User{
			Username: newUsername,
			Disabled: newDisabled,
		}
		if err := u.SetPassword(password); err != nil {
			return err
		}

		database, err := sqlite.NewSQLiteFromConfig()
		if err != nil {
			return err
		}
		defer database.Close()

		err = database.CreateUser(cmd.Context(), u)
		if errors.Is(err, db.ErrDuplicateUser) {
			fmt.Fprintf(os.Stderr, "user %s already exists\n", newUsername)
			return err
		}
		if err != nil {
			return err
		}

		log.Info().Str("username", u.Username).Str("id", u.Id).Bool("disabled", u.Disabled).Msg("created user")
		return nil
	},
}
