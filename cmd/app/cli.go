package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/contactservice"
	"github.com/sushihentaime/devlog/internal/contentservice"
	"github.com/sushihentaime/devlog/internal/mailservice"
	"github.com/sushihentaime/devlog/internal/newsletterservice"
)

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     *Config
	)

	rootCmd := &cobra.Command{
		Use:           "devlog",
		Short:         "devlog serves the site's content, newsletter and contact APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cfgFile)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file to read (default is ./.env when present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cfg.Environment)
			if err := runServe(cfg, logger); err != nil {
				logger.Error("server stopped", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate every content record and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			content := contentservice.NewContentService(os.DirFS(cfg.ContentDir), nil, logger)

			n, err := runCheck(cmd.Context(), cmd.OutOrStdout(), content)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			if n > 0 {
				err := fmt.Errorf("%d content problem(s) found", n)
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, checkCmd)

	return rootCmd
}

// runCheck prints one line per content problem and returns how many there
// were.
func runCheck(ctx context.Context, out io.Writer, content *contentservice.ContentService) (int, error) {
	problems, err := content.Check(ctx)
	if err != nil {
		return 0, err
	}

	for _, p := range problems {
		fmt.Fprintf(out, "%s/%s: %s\n", p.Type, p.File, p.Message)
	}

	if len(problems) == 0 {
		fmt.Fprintln(out, "all content records are valid")
	}

	return len(problems), nil
}

func runServe(cfg *Config, logger *slog.Logger) error {
	if err := cfg.validateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := common.NewCache(cfg.ContentCacheTTL)
	content := contentservice.NewContentService(os.DirFS(cfg.ContentDir), cache, logger)

	if cfg.ContentWatch {
		go func() {
			if err := content.Watch(ctx, cfg.ContentDir); err != nil {
				logger.Error("content watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	var repo newsletterservice.Repository
	switch cfg.NewsletterBackend {
	case backendPostgres:
		dbCfg := cfg.dbConfig()
		db, err := common.NewDB(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		defer db.Close()

		if cfg.DBMigrations != "" {
			if _, err := common.MigrateDB(cfg.DBMigrations, dbCfg.DSN()); err != nil {
				return err
			}
			logger.Info("database migrations applied", slog.String("source", cfg.DBMigrations))
		}
		repo = newsletterservice.NewPostgresStore(db)
	default:
		repo = newsletterservice.NewFileStore(cfg.NewsletterFile)
	}

	var producer common.MessageProducer
	if cfg.MQHost != "" {
		broker, err := common.NewMessageBroker(cfg.brokerURI())
		if err != nil {
			return fmt.Errorf("failed to connect to the message broker: %w", err)
		}
		defer broker.Close()

		if err := common.SetupNewsletterExchange(broker); err != nil {
			return fmt.Errorf("failed to setup the newsletter exchange: %w", err)
		}
		producer = broker
	}

	proxies, err := parseProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	mailer := mailservice.NewMailer(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailSender, &mailservice.Template{})

	app := &application{
		config:     cfg,
		logger:     logger,
		cache:      cache,
		content:    content,
		newsletter: newsletterservice.NewNewsletterService(repo, mailer, producer, logger, cfg.SiteURL, cfg.NewsletterName),
		contact:    contactservice.NewContactService(mailer, cfg.ContactEmail, logger),
		limiter:    newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		proxies:    proxies,
	}

	go app.limiter.sweep(ctx, time.Minute, 3*time.Minute)

	return app.serve(ctx)
}
