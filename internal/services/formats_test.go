package services

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mkotov/vidrelay/internal/cookies"
)

func testResolver(t *testing.T, out []byte, err error) *Resolver {
	t.Helper()
	r := NewResolver(cookies.NewJar(filepath.Join(t.TempDir(), "cookies.txt")))
	r.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "yt-dlp" {
			t.Fatalf("unexpected binary %q", binary)
		}
		return out, err
	}
	return r
}

func TestResolveFiltersStreams(t *testing.T) {
	payload := `{"formats":[
		{"format_id":"sb0","vcodec":"none","height":null},
		{"format_id":"139","vcodec":"none","height":null},
		{"format_id":"160","vcodec":"avc1.4d400c","height":144},
		{"format_id":"134","vcodec":"avc1.4d401e","height":360},
		{"format_id":"136","vcodec":"avc1.64001f","height":720},
		{"format_id":"247","vcodec":"vp9","height":720},
		{"format_id":"fallback","vcodec":"avc1","height":0},
		{"format_id":"","vcodec":"avc1","height":480}
	]}`
	r := testResolver(t, []byte(payload), nil)

	m := r.Resolve(context.Background(), "https://youtu.be/abc123")
	want := FormatMap{"144": "160", "360": "134", "720": "247"}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("Resolve() = %v, want %v", m, want)
	}
	for label, id := range m {
		if _, err := fmt.Sscanf(label, "%d", new(int)); err != nil {
			t.Errorf("label %q is not numeric", label)
		}
		if id == "" {
			t.Errorf("label %q has empty format id", label)
		}
	}
}

func TestResolveLastWinsOnDuplicateHeight(t *testing.T) {
	payload := `{"formats":[
		{"format_id":"first","vcodec":"avc1","height":720},
		{"format_id":"second","vcodec":"vp9","height":720}
	]}`
	r := testResolver(t, []byte(payload), nil)

	m := r.Resolve(context.Background(), "https://youtu.be/abc123")
	if m["720"] != "second" {
		t.Fatalf("expected later stream to win, got %q", m["720"])
	}
}

func TestResolveEmptyOnFailure(t *testing.T) {
	cases := []struct {
		name string
		out  []byte
		err  error
	}{
		{"command error", nil, fmt.Errorf("ERROR: unsupported URL")},
		{"bad json", []byte("not json"), nil},
		{"no formats", []byte(`{"formats":[]}`), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testResolver(t, tc.out, tc.err)
			if m := r.Resolve(context.Background(), "https://youtu.be/x"); len(m) != 0 {
				t.Fatalf("expected empty map, got %v", m)
			}
		})
	}
}

func TestFormatMapLabelsSortedNumerically(t *testing.T) {
	m := FormatMap{"1080": "a", "144": "b", "720": "c", "360": "d"}
	want := []string{"144", "360", "720", "1080"}
	if got := m.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
}

func TestFormatMapPick(t *testing.T) {
	m := FormatMap{"360": "a", "480": "b", "1080": "c"}

	if label, id := m.Pick("480"); label != "480" || id != "b" {
		t.Fatalf("Pick(480) = %q,%q", label, id)
	}
	// Absent label falls back to the numerically highest resolution.
	if label, id := m.Pick("720"); label != "1080" || id != "c" {
		t.Fatalf("Pick(720) = %q,%q, want 1080,c", label, id)
	}
	if label, id := (FormatMap{}).Pick("720"); label != "" || id != "" {
		t.Fatalf("Pick on empty map = %q,%q", label, id)
	}
}

func TestDefaultRunnerSurfacesStderr(t *testing.T) {
	_, err := defaultRunner(context.Background(), "sh", "-c", `echo "ERROR: Video unavailable" 1>&2; exit 1`)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := ExtractYtdlpError(err.Error()); got != "Video unavailable" {
		t.Fatalf("stderr not folded into error: %q", err)
	}
}

func TestExtractYtdlpError(t *testing.T) {
	out := "[youtube] abc123: Downloading webpage\nERROR: Video unavailable\n"
	if got := ExtractYtdlpError(out); got != "Video unavailable" {
		t.Fatalf("ExtractYtdlpError() = %q", got)
	}
	if got := ExtractYtdlpError("  plain failure  "); got != "plain failure" {
		t.Fatalf("ExtractYtdlpError() = %q", got)
	}
}
