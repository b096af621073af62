package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/config"
	"github.com/OliverSchlueter/smtpevent/internal/delivery"
	"github.com/OliverSchlueter/smtpevent/internal/mailhandler"
	"github.com/OliverSchlueter/smtpevent/internal/mails"
	fakemails "github.com/OliverSchlueter/smtpevent/internal/mails/database/fake"
	"github.com/OliverSchlueter/smtpevent/internal/metrics"
	"github.com/OliverSchlueter/smtpevent/internal/smtp"
	"github.com/OliverSchlueter/smtpevent/internal/users"
	fakeusers "github.com/OliverSchlueter/smtpevent/internal/users/database/fake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", sloki.WrapError(err))
		os.Exit(1)
	}

	consoleLevel, _ := cfg.Log.SlogLevel()
	lokiService := sloki.NewService(sloki.Configuration{
		URL:          cfg.Log.LokiURL,
		Service:      smtp.Product,
		ConsoleLevel: consoleLevel,
		LokiLevel:    slog.LevelInfo,
		EnableLoki:   cfg.Log.EnableLoki,
	})
	slog.SetDefault(slog.New(lokiService))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// users
	us := users.NewStore(users.Configuration{
		DB: fakeusers.NewDB(),
	})
	for _, u := range cfg.Users {
		if _, err := us.Create(users.User{Name: u.Name, Emails: u.Emails}); err != nil {
			slog.Error("Failed to create user", "user", u.Name, sloki.WrapError(err))
		}
	}

	// mails
	ms := mails.NewStore(mails.Configuration{
		DB: fakemails.NewDB(),
	})

	// delivery
	deliverers, closeDeliverers := buildDeliverers(cfg, us, ms)
	dispatcher := delivery.NewDispatcher(delivery.Configuration{
		Deliverers: deliverers,
		Workers:    cfg.Delivery.Workers,
		QueueSize:  cfg.Delivery.QueueSize,
		Timeout:    cfg.Delivery.Timeout.Duration,
		Metrics:    m,
	})
	dispatcher.Start(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// smtp server
	smtpServer := smtp.NewServer(smtp.Configuration{
		Hostname:    cfg.Hostname,
		Port:        cfg.SMTP.Port,
		IdleTimeout: cfg.SMTP.IdleTimeout.Duration,
		Sink:        dispatcher,
		Metrics:     m,
	})
	go func() {
		if err := smtpServer.Start(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			slog.Error("SMTP server failed", sloki.WrapError(err))
			stop()
		}
	}()

	// http api
	var httpServer *http.Server
	if cfg.HTTP.Addr != "" {
		mux := http.NewServeMux()
		mailhandler.New(mailhandler.Configuration{
			Mails:    ms,
			Users:    us,
			Gatherer: reg,
		}).Register("/api/v1", mux)

		httpServer = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server failed", sloki.WrapError(err))
				stop()
			}
		}()
		slog.Info("Started HTTP server", "addr", cfg.HTTP.Addr)
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := smtpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("SMTP sessions did not end in time", sloki.WrapError(err))
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down HTTP server", sloki.WrapError(err))
		}
	}

	dispatcher.Stop()
	closeDeliverers()
}

// buildDeliverers returns the enabled deliverers and a function releasing
// their connections.
func buildDeliverers(cfg config.Configuration, us *users.Store, ms *mails.Store) ([]delivery.Deliverer, func()) {
	deliverers := []delivery.Deliverer{delivery.LogDeliverer{}}
	closers := []func(){}

	if cfg.Delivery.Mailbox {
		deliverers = append(deliverers, delivery.NewMailboxDeliverer(delivery.MailboxConfiguration{
			Users:    us,
			Mails:    ms,
			CatchAll: cfg.Delivery.CatchAll,
		}))
	}

	if cfg.NATS.URL != "" {
		nc, err := delivery.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			slog.Error("NATS publishing disabled", sloki.WrapError(err))
		} else {
			deliverers = append(deliverers, delivery.NewNATSPublisher(delivery.NATSConfiguration{
				Conn:     nc,
				Subject:  cfg.NATS.Subject,
				Encoding: cfg.NATS.Encoding,
			}))
			closers = append(closers, func() {
				if err := nc.Drain(); err != nil {
					slog.Warn("Failed to drain NATS connection", sloki.WrapError(err))
				}
			})
		}
	}

	if cfg.Relay.Smarthost != "" || cfg.Relay.Enabled {
		if relay, err := buildRelay(cfg); err != nil {
			slog.Error("Relay disabled", sloki.WrapError(err))
		} else {
			deliverers = append(deliverers, relay)
		}
	}

	return deliverers, func() {
		for _, c := range closers {
			c()
		}
	}
}

func buildRelay(cfg config.Configuration) (*delivery.Relay, error) {
	relayCfg := delivery.RelayConfiguration{
		Smarthost: cfg.Relay.Smarthost,
		Port:      cfg.Relay.Port,
		Helo:      cfg.Relay.Helo,
		Timeout:   cfg.Delivery.Timeout.Duration,
	}
	if relayCfg.Helo == "" {
		relayCfg.Helo = cfg.Hostname
	}

	if relayCfg.Smarthost == "" {
		resolver, err := delivery.NewDNSResolver(cfg.Relay.DNSServer)
		if err != nil {
			return nil, err
		}
		relayCfg.Resolver = resolver
	}

	if cfg.Relay.DKIMKey != "" {
		domain := cfg.Relay.DKIMDomain
		if domain == "" {
			domain = cfg.Hostname
		}

		signer, err := delivery.LoadDKIMSigner(cfg.Relay.DKIMKey, domain, cfg.Relay.DKIMSelector)
		if err != nil {
			return nil, err
		}
		relayCfg.Signer = signer
	}

	return delivery.NewRelay(relayCfg), nil
}
