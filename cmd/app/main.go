package main

import (
	"log/slog"
	"net/netip"
	"os"

	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/contactservice"
	"github.com/sushihentaime/devlog/internal/contentservice"
	"github.com/sushihentaime/devlog/internal/newsletterservice"
)

type application struct {
	config     *Config
	logger     *slog.Logger
	cache      *common.Cache
	content    *contentservice.ContentService
	newsletter *newsletterservice.NewsletterService
	contact    *contactservice.ContactService
	limiter    *clientLimiter
	proxies    []netip.Prefix
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
