package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkotov/vidrelay/internal/bot"
	"github.com/mkotov/vidrelay/internal/config"
	"github.com/mkotov/vidrelay/internal/cookies"
	"github.com/mkotov/vidrelay/internal/relay"
	"github.com/mkotov/vidrelay/internal/server"
	"github.com/mkotov/vidrelay/internal/services"
	"github.com/mkotov/vidrelay/internal/supervisor"
	"github.com/mkotov/vidrelay/internal/util"
)

func main() {
	godotenv.Load()
	config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := util.CheckDependencies(config.CookieStrategy == "headless"); err != nil {
		log.Fatalf("[Deps] %v", err)
	}

	jar := cookies.NewJar(config.CookiesFile)
	var provisioner cookies.Provisioner
	switch config.CookieStrategy {
	case "browser":
		provisioner = cookies.NewBrowserImporter(jar, config.CookieBrowser)
	case "headless":
		provisioner = cookies.NewHeadlessProvisioner(jar, config.BrowserProfileDir, config.LoginEmail, config.LoginPassword)
	}

	// Cookies are provisioned before any bot process starts taking
	// traffic; a failed login aborts startup. Children reuse the jar the
	// parent wrote unless it is invalid.
	if provisioner != nil && (!supervisor.IsChild() || !jar.Valid()) {
		log.Printf("[Cookies] Provisioning jar via %s strategy", config.CookieStrategy)
		if err := provisioner.Refresh(ctx); err != nil {
			log.Fatalf("[Cookies] Provisioning failed: %v", err)
		}
	}

	// Multi-token deployments fan out one OS process per bot credential.
	// The relay session is authenticated here first so the interactive
	// code prompt happens once, before the children start.
	if !supervisor.IsChild() && len(config.BotTokens) > 1 {
		if config.RelayConfigured() {
			up, err := relay.New(config.AppID, config.AppHash, config.PhoneNumber, config.RelaySessionDir, config.PrivateGroupID)
			if err != nil {
				log.Fatalf("[Relay] %v", err)
			}
			if err := up.WarmUp(ctx); err != nil {
				log.Fatalf("[Relay] %v", err)
			}
		}
		if err := supervisor.Run(config.BotTokens, config.StatusPort); err != nil {
			log.Fatalf("[Supervisor] %v", err)
		}
		return
	}

	if err := run(ctx, jar, provisioner); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Bot] %v", err)
	}
	log.Println("[Bot] Stopped")
}

func run(ctx context.Context, jar *cookies.Jar, provisioner cookies.Provisioner) error {
	resolver := services.NewResolver(jar)
	downloader := services.NewDownloader(resolver, jar, config.DownloadDir)
	pool := services.NewPool(config.MaxConcurrentDownloads)

	deps := bot.Deps{
		Resolver:   resolver,
		Downloader: downloader,
		Pool:       pool,
	}
	if config.RelayConfigured() {
		up, err := relay.New(config.AppID, config.AppHash, config.PhoneNumber, config.RelaySessionDir, config.PrivateGroupID)
		if err != nil {
			return err
		}
		if err := up.WarmUp(ctx); err != nil {
			return err
		}
		deps.Relay = up
	} else {
		log.Println("[Relay] Not configured; files over the direct-send cap cannot be delivered")
	}

	b, err := bot.New(bot.Config{Token: config.BotToken}, deps)
	if err != nil {
		return err
	}

	if provisioner != nil {
		cookies.StartRefresh(ctx, provisioner, config.CookieRefreshInterval)
	}
	util.StartCleanupInterval(config.DownloadDir, time.Hour, 20*time.Minute)

	if config.StatusPort != "" {
		started := time.Now()
		srv := server.New(config.StatusPort, func() server.Status {
			age, _ := jar.Age()
			return server.Status{
				Version:         config.Version,
				UptimeSeconds:   time.Since(started).Seconds(),
				ActiveDownloads: b.ActiveDownloads(),
				CookieJarValid:  jar.Valid(),
				CookieJarBytes:  jar.Size(),
				CookieAgeSecs:   age.Seconds(),
			}
		})
		go func() {
			log.Printf("[Status] Listening on :%s", config.StatusPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[Status] Server error: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return b.Run(ctx)
}
