package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inboxd/inboxd/config"
	"github.com/inboxd/inboxd/db"
	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/pkg/retry"
	"github.com/inboxd/inboxd/resolver"
	"github.com/inboxd/inboxd/server/cleaner"
	"github.com/inboxd/inboxd/server/fetcher"
	"github.com/inboxd/inboxd/server/httpapi"
	"github.com/inboxd/inboxd/server/ingest"
	"github.com/inboxd/inboxd/server/smtpsink"
)

func main() {
	// Initialize with application defaults; the config file and then
	// command-line flags override them in that order.
	cfg := config.NewDefaultConfig()

	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")

	// Logging flags
	fLogOutput := flag.String("logoutput", cfg.Logging.Output, "Log output: 'stderr', 'stdout', 'syslog', or a file path (overrides config)")
	fLogLevel := flag.String("loglevel", cfg.Logging.Level, "Log level: 'debug', 'info', 'warn', or 'error' (overrides config)")

	// Database flags
	fDbHost := flag.String("dbhost", cfg.Database.Host, "Database host (overrides config)")
	fDbPort := flag.String("dbport", "", "Database port (overrides config)")
	fDbUser := flag.String("dbuser", cfg.Database.User, "Database user (overrides config)")
	fDbPassword := flag.String("dbpassword", cfg.Database.Password, "Database password (overrides config)")
	fDbName := flag.String("dbname", cfg.Database.Name, "Database name (overrides config)")
	fDbTLS := flag.Bool("dbtls", cfg.Database.TLSMode, "Enable TLS for database connection (overrides config)")
	fDbLogQueries := flag.Bool("dblogqueries", cfg.Database.LogQueries, "Log all database queries (overrides config)")

	// Source/server enable flags
	fStartIMAP := flag.Bool("imap", cfg.IMAP.Start, "Start the IMAP mailbox source (overrides config)")
	fIMAPHost := flag.String("imaphost", cfg.IMAP.Host, "Upstream IMAP server host (overrides config)")
	fIMAPUser := flag.String("imapuser", cfg.IMAP.User, "Upstream IMAP user (overrides config)")
	fIMAPPassword := flag.String("imappassword", cfg.IMAP.Password, "Upstream IMAP password (overrides config)")
	fStartSMTP := flag.Bool("smtp", cfg.SMTP.Start, "Start the direct SMTP sink (overrides config)")
	fSMTPAddr := flag.String("smtpaddr", cfg.SMTP.Addr, "SMTP sink listen address (overrides config)")
	fStartHTTP := flag.Bool("http", cfg.HTTP.Start, "Start the HTTP API server (overrides config)")
	fHTTPAddr := flag.String("httpaddr", cfg.HTTP.Addr, "HTTP API listen address (overrides config)")

	flag.Parse()

	if err := config.Load(*configPath, &cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Apply command-line overrides for flags explicitly set.
	if isFlagSet("logoutput") {
		cfg.Logging.Output = *fLogOutput
	}
	if isFlagSet("loglevel") {
		cfg.Logging.Level = *fLogLevel
	}
	if isFlagSet("dbhost") {
		cfg.Database.Host = *fDbHost
	}
	if isFlagSet("dbport") {
		cfg.Database.Port = *fDbPort
	}
	if isFlagSet("dbuser") {
		cfg.Database.User = *fDbUser
	}
	if isFlagSet("dbpassword") {
		cfg.Database.Password = *fDbPassword
	}
	if isFlagSet("dbname") {
		cfg.Database.Name = *fDbName
	}
	if isFlagSet("dbtls") {
		cfg.Database.TLSMode = *fDbTLS
	}
	if isFlagSet("dblogqueries") {
		cfg.Database.LogQueries = *fDbLogQueries
	}
	if isFlagSet("imap") {
		cfg.IMAP.Start = *fStartIMAP
	}
	if isFlagSet("imaphost") {
		cfg.IMAP.Host = *fIMAPHost
	}
	if isFlagSet("imapuser") {
		cfg.IMAP.User = *fIMAPUser
	}
	if isFlagSet("imappassword") {
		cfg.IMAP.Password = *fIMAPPassword
	}
	if isFlagSet("smtp") {
		cfg.SMTP.Start = *fStartSMTP
	}
	if isFlagSet("smtpaddr") {
		cfg.SMTP.Addr = *fSMTPAddr
	}
	if isFlagSet("http") {
		cfg.HTTP.Start = *fStartHTTP
	}
	if isFlagSet("httpaddr") {
		cfg.HTTP.Addr = *fHTTPAddr
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if !cfg.IMAP.Start && !cfg.SMTP.Start && !cfg.HTTP.Start {
		logger.Fatal("No servers enabled. Enable at least one of the IMAP source, the SMTP sink, or the HTTP API.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// The database usually starts alongside the service; retry with backoff
	// instead of dying on a race.
	var database *db.Database
	err = retry.WithRetry(ctx, func() error {
		var dbErr error
		database, dbErr = db.NewDatabase(ctx, &cfg.Database)
		if dbErr != nil {
			logger.Warn("Database not ready, retrying", "error", dbErr)
		}
		return dbErr
	}, retry.DefaultBackoffConfig())
	if err != nil {
		logger.Fatal("Failed to connect to the database", "error", err)
	}
	defer database.Close()

	retentionWindow, err := cfg.Retention.GetWindow()
	if err != nil {
		logger.Fatal("Invalid retention window", "error", err)
	}
	wakeInterval, err := cfg.Retention.GetWakeInterval()
	if err != nil {
		logger.Fatal("Invalid retention wake_interval", "error", err)
	}
	startupDelay, err := cfg.Retention.GetStartupDelay()
	if err != nil {
		logger.Fatal("Invalid retention startup_delay", "error", err)
	}

	errChan := make(chan error, 1)

	res := resolver.New(cfg.Ingest.Domains)

	retentionWorker := cleaner.New(database, retentionWindow, wakeInterval, startupDelay)
	retentionWorker.Start(ctx)

	if cfg.IMAP.Start {
		ingestor := ingest.New(database, res, "imap")
		worker, err := fetcher.New(cfg.IMAP, ingestor, retentionWindow)
		if err != nil {
			logger.Fatal("Failed to create IMAP worker", "error", err)
		}
		worker.Start(ctx)
	}

	if cfg.SMTP.Start {
		ingestor := ingest.New(database, res, "smtp")
		go smtpsink.Start(ctx, cfg.SMTP, ingestor, res, errChan)
	}

	if cfg.HTTP.Start {
		go httpapi.Start(ctx, database, httpapi.ServerOptions{
			Addr:           cfg.HTTP.Addr,
			APIKey:         cfg.HTTP.APIKey,
			AllowedHosts:   cfg.HTTP.AllowedHosts,
			Domains:        cfg.Ingest.Domains,
			ExcludedSender: cfg.Ingest.ExcludedSender,
		}, errChan)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errChan:
		logger.Fatal(fmt.Sprintf("Server error: %v", err))
	}
}

// isFlagSet reports whether a flag was explicitly set on the command line.
func isFlagSet(name string) bool {
	isSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}
