package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mkotov/vidrelay/internal/config"
)

// Cookie is one row of a Netscape-format jar.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           int64
	Name              string
	Value             string
}

// Jar guards a cookie file shared between the refresh task and every
// yt-dlp invocation. Readers hold the lock for the whole extractor run so
// a refresh can never swap the file out from under them.
type Jar struct {
	mu   sync.RWMutex
	path string
}

func NewJar(path string) *Jar {
	return &Jar{path: path}
}

func (j *Jar) Path() string { return j.path }

// Valid reports whether the jar looks usable. The check is deliberately
// weak: the file exists and is bigger than an empty header would be.
func (j *Jar) Valid() bool {
	info, err := os.Stat(j.path)
	if err != nil {
		return false
	}
	return info.Size() > config.MinCookieJarSize
}

// Age returns how long ago the jar was last written.
func (j *Jar) Age() (time.Duration, bool) {
	info, err := os.Stat(j.path)
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

func (j *Jar) Size() int64 {
	info, err := os.Stat(j.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// WithRead runs fn while holding the read lock. args is the yt-dlp cookie
// argument pair, or nil when the jar is missing or invalid.
func (j *Jar) WithRead(fn func(args []string) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var args []string
	if j.Valid() {
		args = []string{"--cookies", j.path}
	}
	return fn(args)
}

// WriteAll replaces the jar wholesale: serialize to a temp file in the
// same directory, then rename into place under the write lock.
func (j *Jar) WriteAll(list []Cookie) error {
	data := FormatNetscape(list)

	j.mu.Lock()
	defer j.mu.Unlock()

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create jar dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("create temp jar: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp jar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install jar: %w", err)
	}
	return nil
}

// Install atomically replaces the jar with an already-written file.
func (j *Jar) Install(src string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return os.Rename(src, j.path)
}

// FormatNetscape serializes cookies in the classic Netscape text format:
// domain, subdomain flag, path, secure flag, expiry epoch, name, value.
func FormatNetscape(list []Cookie) []byte {
	sorted := append([]Cookie(nil), list...)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Domain != sorted[b].Domain {
			return sorted[a].Domain < sorted[b].Domain
		}
		return sorted[a].Name < sorted[b].Name
	})

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	b.WriteString("# This file is generated by vidrelay. Do not edit.\n\n")
	for _, c := range sorted {
		b.WriteString(strings.Join([]string{
			c.Domain,
			upperBool(c.IncludeSubdomains),
			c.Path,
			upperBool(c.Secure),
			fmt.Sprintf("%d", c.Expires),
			c.Name,
			c.Value,
		}, "\t"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func upperBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
