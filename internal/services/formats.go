package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkotov/vidrelay/internal/cookies"
)

var ytdlpErrorRe = regexp.MustCompile(`(?i)ERROR[:\s]+(.+?)(?:\n|$)`)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, binary, args...).Output()
	// Output() keeps stderr on the ExitError; fold it into the error so
	// callers see yt-dlp's actual complaint, not just the exit status.
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return out, fmt.Errorf("%s: %s", err, ee.Stderr)
	}
	return out, err
}

// FormatMap maps a resolution label ("1080") to a yt-dlp format id.
type FormatMap map[string]string

// Labels returns the resolution labels sorted ascending numerically.
func (m FormatMap) Labels() []string {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(a, b int) bool {
		x, _ := strconv.Atoi(labels[a])
		y, _ := strconv.Atoi(labels[b])
		return x < y
	})
	return labels
}

// Pick returns the format id for label, falling back to the numerically
// highest available resolution when the label is absent.
func (m FormatMap) Pick(label string) (string, string) {
	if id, ok := m[label]; ok {
		return label, id
	}
	best := ""
	bestHeight := -1
	for l := range m {
		h, err := strconv.Atoi(l)
		if err != nil {
			continue
		}
		if h > bestHeight {
			bestHeight = h
			best = l
		}
	}
	if best == "" {
		return "", ""
	}
	return best, m[best]
}

// Resolver lists the downloadable streams of a URL via yt-dlp.
type Resolver struct {
	Jar     *cookies.Jar
	Run     CommandRunner
	Timeout time.Duration
}

func NewResolver(jar *cookies.Jar) *Resolver {
	return &Resolver{
		Jar:     jar,
		Run:     defaultRunner,
		Timeout: 60 * time.Second,
	}
}

// Resolve returns the available resolutions for url. Streams without a
// video codec or a height are dropped; duplicate heights keep the later
// entry. Any failure yields an empty map.
func (r *Resolver) Resolve(ctx context.Context, url string) FormatMap {
	if r.Run == nil {
		r.Run = defaultRunner
	}
	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var out []byte
	err := r.Jar.WithRead(func(cookieArgs []string) error {
		args := append([]string{}, cookieArgs...)
		args = append(args,
			"-J",
			"--no-warnings",
			"--no-playlist",
			"--geo-bypass",
			url,
		)
		var runErr error
		out, runErr = r.Run(execCtx, "yt-dlp", args...)
		return runErr
	})
	if err != nil {
		log.Printf("[Formats] yt-dlp failed for %s: %s", url, ExtractYtdlpError(err.Error()))
		return FormatMap{}
	}

	var payload struct {
		Formats []struct {
			FormatID string   `json:"format_id"`
			Height   *float64 `json:"height"`
			Vcodec   string   `json:"vcodec"`
		} `json:"formats"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		log.Printf("[Formats] Failed to parse yt-dlp output for %s: %v", url, err)
		return FormatMap{}
	}

	m := FormatMap{}
	for _, f := range payload.Formats {
		if f.Vcodec == "" || f.Vcodec == "none" {
			continue
		}
		if f.Height == nil || *f.Height <= 0 {
			continue
		}
		if f.FormatID == "" {
			continue
		}
		m[strconv.Itoa(int(*f.Height))] = f.FormatID
	}
	return m
}

// ExtractYtdlpError pulls the first ERROR line out of yt-dlp output, or
// returns the input trimmed.
func ExtractYtdlpError(output string) string {
	if m := ytdlpErrorRe.FindStringSubmatch(output); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(output)
}
