package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeSender records every bot call as a short event string so tests can
// assert both content and ordering.
type fakeSender struct {
	events []string
	fail   bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch v := c.(type) {
	case tgbotapi.VideoConfig:
		f.events = append(f.events, "video")
	case tgbotapi.ForwardConfig:
		f.events = append(f.events, fmt.Sprintf("forward:%d", v.MessageID))
	case tgbotapi.MessageConfig:
		f.events = append(f.events, "msg:"+v.Text)
	default:
		f.events = append(f.events, fmt.Sprintf("%T", c))
	}
	if f.fail {
		return tgbotapi.Message{}, fmt.Errorf("transport error")
	}
	return tgbotapi.Message{}, nil
}

type fakeRelay struct {
	msgID   int
	err     error
	uploads int
}

func (f *fakeRelay) Upload(ctx context.Context, path string) (int, error) {
	f.uploads++
	return f.msgID, f.err
}

func (f *fakeRelay) GroupID() int64 { return -1001234 }

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRouter(bot Sender, relay RelayUploader) *Router {
	r := NewRouter(bot, relay)
	r.Threshold = 1024
	return r
}

func TestDeliverDirectUnderThreshold(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeRelay{msgID: 7}
	r := testRouter(sender, relay)
	path := writeFile(t, 1024)

	if err := r.Deliver(context.Background(), 42, path); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if relay.uploads != 0 {
		t.Fatalf("relay used for a file under the threshold (%d uploads)", relay.uploads)
	}
	if len(sender.events) != 1 || sender.events[0] != "video" {
		t.Fatalf("events = %v, want one direct video send", sender.events)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file not removed after delivery")
	}
}

func TestDeliverRelayOverThreshold(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeRelay{msgID: 99}
	r := testRouter(sender, relay)
	path := writeFile(t, 2048)

	if err := r.Deliver(context.Background(), 42, path); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if relay.uploads != 1 {
		t.Fatalf("relay uploads = %d, want 1", relay.uploads)
	}

	want := []string{
		"msg:Video is 0.00MB. Uploading via relay...",
		"forward:99",
		"msg:Upload completed and sent to you.",
	}
	if len(sender.events) != len(want) {
		t.Fatalf("events = %v, want %v", sender.events, want)
	}
	if !strings.HasPrefix(sender.events[0], "msg:Video is ") {
		t.Fatalf("size notice missing before relay: %v", sender.events)
	}
	for i := 1; i < len(want); i++ {
		if sender.events[i] != want[i] {
			t.Fatalf("event[%d] = %q, want %q", i, sender.events[i], want[i])
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file not removed after relay delivery")
	}
}

func TestDeliverRelayMissingMessageID(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeRelay{msgID: 0}
	r := testRouter(sender, relay)

	err := r.Deliver(context.Background(), 42, writeFile(t, 2048))
	if !errors.Is(err, ErrRelayFailed) {
		t.Fatalf("error = %v, want ErrRelayFailed", err)
	}

	var failures, forwards int
	for _, e := range sender.events {
		if e == "msg:Failed to retrieve uploaded video." {
			failures++
		}
		if strings.HasPrefix(e, "forward:") {
			forwards++
		}
	}
	if failures != 1 {
		t.Fatalf("failure messages = %d, want exactly 1 (events %v)", failures, sender.events)
	}
	if forwards != 0 {
		t.Fatalf("forward issued despite missing message id: %v", sender.events)
	}
}

func TestDeliverRelayUploadError(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeRelay{err: fmt.Errorf("connect failed")}
	r := testRouter(sender, relay)

	err := r.Deliver(context.Background(), 42, writeFile(t, 2048))
	if !errors.Is(err, ErrRelayFailed) {
		t.Fatalf("error = %v, want ErrRelayFailed", err)
	}
	last := sender.events[len(sender.events)-1]
	if last != "msg:An error occurred while uploading your video." {
		t.Fatalf("last event = %q", last)
	}
}

func TestDeliverNoRelayConfigured(t *testing.T) {
	sender := &fakeSender{}
	r := testRouter(sender, nil)

	err := r.Deliver(context.Background(), 42, writeFile(t, 2048))
	if !errors.Is(err, ErrRelayFailed) {
		t.Fatalf("error = %v, want ErrRelayFailed", err)
	}
}

func TestDeliverDirectTransportError(t *testing.T) {
	sender := &fakeSender{fail: true}
	r := testRouter(sender, &fakeRelay{})

	if err := r.Deliver(context.Background(), 42, writeFile(t, 100)); err == nil {
		t.Fatal("expected direct send error to surface")
	}
}
