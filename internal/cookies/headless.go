package cookies

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/mkotov/vidrelay/internal/config"
)

const (
	loginURL     = "https://accounts.google.com/ServiceLogin"
	loggedInURL  = "https://myaccount.google.com/"
	videoSiteURL = "https://www.youtube.com/"
)

// HeadlessProvisioner drives a persistent headless browser profile through
// the provider login and exports the video site's session cookies.
type HeadlessProvisioner struct {
	Jar        *Jar
	ProfileDir string
	Email      string
	Password   string
	Headless   bool
	Timeout    time.Duration
	RetryDelay time.Duration
}

func NewHeadlessProvisioner(jar *Jar, profileDir, email, password string) *HeadlessProvisioner {
	return &HeadlessProvisioner{
		Jar:        jar,
		ProfileDir: profileDir,
		Email:      email,
		Password:   password,
		Headless:   true,
		Timeout:    5 * time.Minute,
		RetryDelay: config.LoginRetryDelay,
	}
}

// Refresh logs in if the disk-backed profile has no live session, then
// regenerates the jar from the video site's cookies.
func (h *HeadlessProvisioner) Refresh(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserDataDir(h.ProfileDir),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, h.Timeout)
	defer cancelRun()

	ok, err := h.sessionAlive(runCtx)
	if err != nil {
		return fmt.Errorf("session probe failed: %w", err)
	}
	if !ok {
		log.Printf("[Cookies] No live session in %s, logging in as %s", h.ProfileDir, h.Email)
		if err := h.login(runCtx); err != nil {
			return fmt.Errorf("cookie error: login failed: %w", err)
		}
	}

	return h.export(runCtx)
}

// sessionAlive loads a page that only renders for an authenticated user
// and checks we were not bounced to the sign-in form.
func (h *HeadlessProvisioner) sessionAlive(ctx context.Context) (bool, error) {
	var loc string
	err := chromedp.Run(ctx,
		chromedp.Navigate(loggedInURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Location(&loc),
	)
	if err != nil {
		return false, err
	}
	return !strings.Contains(loc, "signin") && !strings.Contains(loc, "ServiceLogin"), nil
}

func (h *HeadlessProvisioner) login(ctx context.Context) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`//input[@type="email" or @id="identifierId"]`, chromedp.BySearch),
		chromedp.SendKeys(`//input[@type="email" or @id="identifierId"]`, h.Email, chromedp.BySearch),
		chromedp.Click(`#identifierNext`, chromedp.ByID),
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		return fmt.Errorf("identifier step: %w", err)
	}

	return h.retryPassword(ctx, h.submitPassword, h.sessionAlive)
}

// submitPassword fills and submits the password form once.
func (h *HeadlessProvisioner) submitPassword(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.WaitVisible(`//input[@type="password" or @name="Passwd"]`, chromedp.BySearch),
		chromedp.SendKeys(`//input[@type="password" or @name="Passwd"]`, h.Password, chromedp.BySearch),
		chromedp.Click(`#passwordNext`, chromedp.ByID),
		chromedp.Sleep(5*time.Second),
	)
}

// retryPassword drives the password step up to config.LoginAttempts
// times, verifying each submit against the authenticated-session probe.
func (h *HeadlessProvisioner) retryPassword(ctx context.Context, submit func(context.Context) error, alive func(context.Context) (bool, error)) error {
	var lastErr error
	for attempt := 1; attempt <= config.LoginAttempts; attempt++ {
		lastErr = submit(ctx)
		if lastErr == nil {
			ok, probeErr := alive(ctx)
			if probeErr != nil {
				lastErr = probeErr
			} else if ok {
				log.Printf("[Cookies] Login verified on attempt %d", attempt)
				return nil
			} else {
				lastErr = fmt.Errorf("still unauthenticated after password submit")
			}
		}
		log.Printf("[Cookies] Password step attempt %d/%d failed: %v", attempt, config.LoginAttempts, lastErr)
		if attempt < config.LoginAttempts {
			time.Sleep(h.RetryDelay)
		}
	}
	return fmt.Errorf("password step failed after %d attempts: %w", config.LoginAttempts, lastErr)
}

// export navigates the target video site and snapshots its cookies into
// the jar.
func (h *HeadlessProvisioner) export(ctx context.Context) error {
	var captured []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.Navigate(videoSiteURL),
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			captured, err = network.GetCookies().WithURLs([]string{videoSiteURL}).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("cookie export failed: %w", err)
	}
	if len(captured) == 0 {
		return fmt.Errorf("cookie export returned no cookies")
	}

	list := make([]Cookie, 0, len(captured))
	for _, c := range captured {
		list = append(list, Cookie{
			Domain:            c.Domain,
			IncludeSubdomains: strings.HasPrefix(c.Domain, "."),
			Path:              c.Path,
			Secure:            c.Secure,
			Expires:           int64(c.Expires),
			Name:              c.Name,
			Value:             c.Value,
		})
	}
	if err := h.Jar.WriteAll(list); err != nil {
		return err
	}
	log.Printf("[Cookies] Exported %d cookies to %s", len(list), h.Jar.Path())
	return nil
}
