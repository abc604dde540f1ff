package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tbourn/go-livechat/internal/auth"
	"github.com/tbourn/go-livechat/internal/client"
	"github.com/tbourn/go-livechat/internal/config"
	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/livechat"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/sysutil"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out, errOut io.Writer) *cli.App {
	app := &cli.App{
		Name:      "livechat",
		Usage:     "Storefront live chat in the terminal",
		Version:   Version,
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Commands: []*cli.Command{
			chatCmd(),
			tokenCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// chatCmd creates the interactive chat command.
func chatCmd() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Open the chat widget and talk to support (reads lines from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "Support API base URL (LIVECHAT_BACKEND_URL)"},
			&cli.StringFlag{Name: "tab", Aliases: []string{"t"}, Usage: "Tab id scoping the durable state (LIVECHAT_TAB_ID)"},
			&cli.StringFlag{Name: "state-db", Usage: "SQLite file of tab state (LIVECHAT_STATE_DB)"},
			&cli.StringFlag{Name: "token", Usage: "Customer bearer token (LIVECHAT_TOKEN)"},
			&cli.StringFlag{Name: "route", Usage: "Page the tab is on (LIVECHAT_ROUTE)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			cfg.BackendURL = sysutil.FirstNonEmpty(c.String("backend"), cfg.BackendURL)
			cfg.TabID = sysutil.FirstNonEmpty(c.String("tab"), cfg.TabID)
			cfg.StateDB = sysutil.FirstNonEmpty(c.String("state-db"), cfg.StateDB)
			cfg.Token = sysutil.FirstNonEmpty(c.String("token"), cfg.Token)
			cfg.Route = sysutil.FirstNonEmpty(c.String("route"), cfg.Route)

			sysutil.ConfigureLogging("livechat", cfg.LogLevel, cfg.LogPretty, c.App.ErrWriter)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cfg, c.App.Reader, c.App.Writer)
		},
	}
}

// tokenCmd creates the token command.
func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Sign a customer or operator bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Usage: "HS256 signing key"},
			&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Value: string(auth.RoleCustomer), Usage: "customer|operator"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "E-mail address"},
			&cli.StringFlag{Name: "subject", Usage: "Token subject (defaults to a random id)"},
			&cli.DurationFlag{Name: "ttl", Value: auth.DefaultTokenTTL, Usage: "Token lifetime"},
		},
		Action: func(c *cli.Context) error {
			svc := auth.NewJWTService(c.String("secret"))
			if !svc.Enabled() {
				return errors.New("a signing key is required (--secret or JWT_SECRET)")
			}
			subject := sysutil.FirstNonEmpty(c.String("subject"), uuid.NewString())
			role := auth.Role(strings.ToLower(strings.TrimSpace(c.String("role"))))

			tok, err := svc.Sign(subject, c.String("name"), c.String("email"), role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, tok)
			return err
		},
	}
}

// runChat mounts a session for the configured tab and feeds it stdin lines
// until EOF, /quit or ctx is done.
func runChat(ctx context.Context, cfg config.ClientConfig, in io.Reader, out io.Writer) error {
	db, err := repo.OpenSQLite(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.MigrateTabState(db); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}

	backend, err := client.New(cfg.BackendURL,
		client.WithToken(cfg.Token),
		client.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return err
	}

	view := newRenderer(out)
	logger := log.Logger
	sess, err := livechat.NewSession(backend, repo.NewTabStateStore(db, cfg.TabID), livechat.Options{
		PollInterval:        cfg.PollInterval,
		IdleAfter:           cfg.IdleAfter,
		Cooldown:            cfg.Cooldown,
		RestrictionInterval: cfg.RestrictionInterval,
		Route:               cfg.Route,
		AdminPrefixes:       cfg.AdminPrefixes,
		Logger:              &logger,
		OnChange:            view.Render,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Mount(ctx); err != nil {
		return err
	}
	snap := sess.Snapshot()
	if snap.View == livechat.ViewClosed {
		if snap.Channel == domain.ChannelOffline {
			view.Notice("support is offline right now")
		} else {
			view.Notice("chat is not available on " + cfg.Route)
		}
		return nil
	}
	if snap.Channel == domain.ChannelAway {
		view.Notice("support is away; replies may take a while")
	}
	sess.Open()
	view.Notice("type a message and press enter; /help lists commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, open := <-lines:
			if !open {
				return nil
			}
			if quit := handleLine(ctx, sess, view, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line. It reports whether the user asked to quit.
func handleLine(ctx context.Context, sess *livechat.Session, view *renderer, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/open":
		sess.Open()
	case "/minimize":
		sess.Minimize()
	case "/hide":
		sess.Hide()
	case "/status":
		view.Status(sess.Snapshot())
	case "/help":
		view.Help()
	default:
		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := sess.Send(sendCtx, line); err != nil {
			view.SendFailed(sess.Snapshot(), err)
		}
	}
	return false
}
