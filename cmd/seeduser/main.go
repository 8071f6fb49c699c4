// seeduser creates or updates an account in the users table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/config"
	"github.com/sudo-init-do/fieldhub/internal/db"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		username string
		password string
		role     string
		city     string
		dsn      string
		migrate  bool
	)
	flagSet := pflag.NewFlagSet("seeduser", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", "", "account username")
	flagSet.StringVarP(&password, "password", "p", "", "account password")
	flagSet.StringVarP(&role, "role", "r", string(marketplace.RoleClient), "client or freelancer")
	flagSet.StringVar(&city, "city", "", "home city")
	flagSet.StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	flagSet.BoolVar(&migrate, "migrate", true, "apply migrations first")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if username == "" || password == "" {
		return errors.New("usage: seeduser --username NAME --password PASS [--role client|freelancer] [--city CITY]")
	}
	if !marketplace.Role(role).Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if dsn == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}

	logger := config.NewLogger(os.Stderr, "info")
	if migrate {
		if err := db.Migrate(dsn, ""); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	u := auth.User{Username: username, Role: marketplace.Role(role), City: city}
	if err := auth.NewPostgresUsers(pool).UpsertUser(ctx, u, password); err != nil {
		return err
	}
	logger.Info("account saved", "username", username, "role", role, "city", city)
	return nil
}
