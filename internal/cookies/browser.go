package cookies

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// CommandRunner executes an external command, returning combined output.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// BrowserImporter regenerates the jar from a local browser profile by
// delegating to yt-dlp's native browser cookie import.
type BrowserImporter struct {
	Jar     *Jar
	Browser string
	Run     CommandRunner
	Timeout time.Duration
}

func NewBrowserImporter(jar *Jar, browser string) *BrowserImporter {
	return &BrowserImporter{
		Jar:     jar,
		Browser: browser,
		Run:     defaultRunner,
		Timeout: 2 * time.Minute,
	}
}

// Refresh dumps the browser profile's cookies into a temp jar and swaps it
// in. The temp file sits next to the live jar so the rename stays atomic.
func (b *BrowserImporter) Refresh(ctx context.Context) error {
	if b.Run == nil {
		b.Run = defaultRunner
	}
	runCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	dir := filepath.Dir(b.Jar.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create jar dir: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".import-%d.txt", time.Now().UnixNano()))

	out, err := b.Run(runCtx, "yt-dlp",
		"--cookies-from-browser", b.Browser,
		"--cookies", tmp,
		"--skip-download",
		"--no-warnings",
		"https://www.youtube.com",
	)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("browser cookie import failed: %w (%s)", err, firstLine(out))
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("browser import produced no jar: %w", err)
	}
	if err := b.Jar.Install(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	log.Printf("[Cookies] Imported jar from %s profile (%d bytes)", b.Browser, info.Size())
	return nil
}

func firstLine(out []byte) string {
	for i, c := range out {
		if c == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
