package util

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

// SanitizeFilename strips characters that are unsafe on common
// filesystems and collapses whitespace.
func SanitizeFilename(filename string) string {
	s := unsafeFilenameRe.ReplaceAllString(filename, "_")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// CleanupStale removes files in dir older than maxAge. Delivery normally
// deletes its own output; this catches leftovers from crashed jobs.
func CleanupStale(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	now := time.Now()
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			p := filepath.Join(dir, e.Name())
			if err := os.Remove(p); err == nil {
				log.Printf("[Cleanup] Removed stale file: %s", e.Name())
			}
		}
	}
}

// StartCleanupInterval sweeps dir on a fixed interval in the background.
func StartCleanupInterval(dir string, maxAge, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		for range ticker.C {
			CleanupStale(dir, maxAge)
		}
	}()
}
