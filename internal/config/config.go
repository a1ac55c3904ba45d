package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var Version = "dev"

var (
	BotTokens []string
	BotToken  string

	AppID          int
	AppHash        string
	PhoneNumber    string
	PrivateGroupID int64

	CookieStrategy    string
	CookieBrowser     string
	CookiesFile       string
	BrowserProfileDir string
	LoginEmail        string
	LoginPassword     string

	DownloadDir     string
	RelaySessionDir string
	StatusPort      string

	MaxConcurrentDownloads int64
)

const (
	// Direct-send cap of the bot API; anything larger goes through the relay.
	MaxDirectUpload = 50 * 1024 * 1024

	// A jar at or below this size is treated as empty/corrupt.
	MinCookieJarSize = 50

	CookieRefreshInterval = 24 * time.Hour
	BotClientTimeout      = 600 * time.Second
	PendingTTL            = 15 * time.Minute
	LoginAttempts         = 3
	LoginRetryDelay       = 5 * time.Second
)

var SupportedHosts = []string{
	"youtube.com",
	"youtu.be",
	"instagram.com",
	"tiktok.com",
	"facebook.com",
	"twitter.com",
}

var AllowedCookieStrategies = []string{"none", "browser", "headless"}

func Load() {
	tokens := os.Getenv("BOT_TOKENS")
	if tokens == "" {
		tokens = os.Getenv("BOT_TOKEN")
	}
	if tokens == "" {
		log.Fatal("BOT_TOKENS is required")
	}
	for _, t := range strings.Split(tokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			BotTokens = append(BotTokens, t)
		}
	}
	if len(BotTokens) == 0 {
		log.Fatal("BOT_TOKENS contains no usable token")
	}
	BotToken = BotTokens[0]

	if v := os.Getenv("APP_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("APP_ID must be numeric: %v", err)
		}
		AppID = id
	}
	AppHash = os.Getenv("APP_HASH")
	PhoneNumber = os.Getenv("PHONE_NUMBER")

	if v := os.Getenv("PRIVATE_GROUP_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("PRIVATE_GROUP_ID must be numeric: %v", err)
		}
		PrivateGroupID = id
	}

	CookieStrategy = envOrDefault("COOKIE_STRATEGY", "none")
	if !Contains(AllowedCookieStrategies, CookieStrategy) {
		log.Fatalf("COOKIE_STRATEGY must be one of %v", AllowedCookieStrategies)
	}
	CookieBrowser = envOrDefault("COOKIE_BROWSER", "chrome")
	CookiesFile = envOrDefault("COOKIE_FILE", filepath.Join(".", "cookies.txt"))
	BrowserProfileDir = envOrDefault("BROWSER_PROFILE_DIR", filepath.Join(".", "browser-profile"))
	LoginEmail = os.Getenv("LOGIN_EMAIL")
	LoginPassword = os.Getenv("LOGIN_PASSWORD")
	if CookieStrategy == "headless" && (LoginEmail == "" || LoginPassword == "") {
		log.Fatal("LOGIN_EMAIL and LOGIN_PASSWORD are required for the headless cookie strategy")
	}

	DownloadDir = envOrDefault("DOWNLOAD_DIR", "downloads")
	RelaySessionDir = envOrDefault("RELAY_SESSION_DIR", "session")
	StatusPort = os.Getenv("STATUS_PORT")

	n, _ := strconv.Atoi(envOrDefault("MAX_CONCURRENT_DOWNLOADS", "4"))
	if n < 1 {
		n = 4
	}
	MaxConcurrentDownloads = int64(n)
}

// RelayConfigured reports whether the secondary upload identity is usable.
func RelayConfigured() bool {
	return AppID != 0 && AppHash != "" && PhoneNumber != "" && PrivateGroupID != 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
