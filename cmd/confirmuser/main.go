// Command confirmuser marks a local identity's email as confirmed, standing in
// for the confirmation email when the service runs with IDENTITY_PROVIDER=local.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"budgettracker/internal/config"
	"budgettracker/internal/database"
	"budgettracker/internal/identity"
	"budgettracker/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("confirmuser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email of the user to confirm")
	create := fs.Bool("create", false, "Create the user first (prompts for a password)")
	fullName := fs.String("name", "", "Full name used with -create")
	link := fs.Bool("link", false, "Print the confirmation link instead of confirming")
	sqlitePath := fs.String("db", "", "SQLite database file (defaults to the configured database)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Fprintln(stdout, "Usage: confirmuser -email <email> [-create [-name <full name>]] [-link] [-db <sqlite path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *sqlitePath != "" {
		cfg.DBDriver = database.DriverSQLite
		cfg.SQLitePath = *sqlitePath
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dbManager.Close()
	if err := dbManager.Migrate(); err != nil {
		return err
	}

	provider := identity.NewLocalProvider(dbManager.DB(), identity.LocalOptions{
		Secret:  cfg.JWTSecret,
		SiteURL: cfg.SiteURL,
	})
	ctx := context.Background()

	if *create {
		fmt.Fprint(stdout, "Password: ")
		password, err := readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)

		user, err := provider.SignUp(ctx, *email, password, *fullName)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(stdout, "User %s created with ID %s\n", user.Email, user.ID)
	}

	if *link {
		code, err := provider.ConfirmationCode(ctx, *email)
		if err != nil {
			return fmt.Errorf("no pending confirmation for %s: %w", *email, err)
		}
		fmt.Fprintf(stdout, "%s/auth/callback?code=%s\n", cfg.SiteURL, code)
		return nil
	}

	if err := provider.ConfirmEmail(ctx, *email); err != nil {
		return fmt.Errorf("failed to confirm %s: %w", *email, err)
	}
	fmt.Fprintf(stdout, "Email %s confirmed\n", *email)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
