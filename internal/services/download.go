package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkotov/vidrelay/internal/cookies"
)

// Downloader fetches one video via yt-dlp, muxing audio and video into a
// single mp4 regardless of the source container.
type Downloader struct {
	Resolver *Resolver
	Jar      *cookies.Jar
	Dir      string
	Run      CommandRunner
	Timeout  time.Duration
}

func NewDownloader(resolver *Resolver, jar *cookies.Jar, dir string) *Downloader {
	return &Downloader{
		Resolver: resolver,
		Jar:      jar,
		Dir:      dir,
		Run:      combinedRunner,
		Timeout:  30 * time.Minute,
	}
}

func combinedRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// Download resolves the current formats for url, picks the requested
// label (or the highest available one), and downloads into Dir. The file
// is named from the source title, prefixed with a job id so it can be
// located afterwards. Partial output is removed on failure.
func (d *Downloader) Download(ctx context.Context, url, label string) (string, error) {
	if d.Run == nil {
		d.Run = combinedRunner
	}
	formats := d.Resolver.Resolve(ctx, url)
	if len(formats) == 0 {
		return "", fmt.Errorf("no video formats available")
	}
	used, formatID := formats.Pick(label)
	if used != label {
		log.Printf("[Download] Label %sp unavailable, falling back to %sp", label, used)
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	jobID := uuid.NewString()[:8]
	template := filepath.Join(d.Dir, jobID+"-%(title)s.%(ext)s")

	execCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	err := d.Jar.WithRead(func(cookieArgs []string) error {
		args := append([]string{}, cookieArgs...)
		args = append(args,
			"-f", formatID,
			"--merge-output-format", "mp4",
			"--no-playlist",
			"--no-warnings",
			"-o", template,
			url,
		)
		out, runErr := d.Run(execCtx, "yt-dlp", args...)
		if runErr != nil {
			return fmt.Errorf("%s", ExtractYtdlpError(string(out)))
		}
		return nil
	})
	if err != nil {
		d.cleanupJob(jobID)
		return "", fmt.Errorf("download failed: %w", err)
	}

	path, err := d.findResult(jobID)
	if err != nil {
		d.cleanupJob(jobID)
		return "", err
	}
	return path, nil
}

func (d *Downloader) findResult(jobID string) (string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, jobID+"-") {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.Contains(name, ".part-Frag") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		return filepath.Join(d.Dir, name), nil
	}
	return "", fmt.Errorf("downloaded file not found")
}

func (d *Downloader) cleanupJob(jobID string) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), jobID+"-") {
			os.Remove(filepath.Join(d.Dir, e.Name()))
		}
	}
}
