package relay

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestNormalizeGroupID(t *testing.T) {
	cases := []struct {
		name string
		id   int64
		want int64
	}{
		{"bare channel id", 123456789, 123456789},
		{"bot-api supergroup id", -1001234567890, 1234567890},
		{"legacy chat id", -987654, 987654},
		{"zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeGroupID(tc.id); got != tc.want {
				t.Fatalf("NormalizeGroupID(%d) = %d, want %d", tc.id, got, tc.want)
			}
		})
	}
}

func TestSentMessageIDFromChannelUpdate(t *testing.T) {
	u := &tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateMessageID{ID: 41},
			&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 42}},
		},
	}
	// The first recognized update wins.
	if got := SentMessageID(u); got != 41 {
		t.Fatalf("SentMessageID = %d, want 41", got)
	}
}

func TestSentMessageIDFromNewMessage(t *testing.T) {
	u := &tg.UpdatesCombined{
		Updates: []tg.UpdateClass{
			&tg.UpdateNewMessage{Message: &tg.Message{ID: 17}},
		},
	}
	if got := SentMessageID(u); got != 17 {
		t.Fatalf("SentMessageID = %d, want 17", got)
	}
}

func TestSentMessageIDFromShortSent(t *testing.T) {
	if got := SentMessageID(&tg.UpdateShortSentMessage{ID: 8}); got != 8 {
		t.Fatalf("SentMessageID = %d, want 8", got)
	}
}

func TestSentMessageIDMissing(t *testing.T) {
	cases := []struct {
		name string
		u    tg.UpdatesClass
	}{
		{"empty updates", &tg.Updates{}},
		{"unrelated update", &tg.Updates{
			Updates: []tg.UpdateClass{&tg.UpdateUserTyping{}},
		}},
		{"empty channel message", &tg.Updates{
			Updates: []tg.UpdateClass{
				&tg.UpdateNewChannelMessage{Message: &tg.MessageEmpty{}},
			},
		}},
		{"short update", &tg.UpdateShort{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SentMessageID(tc.u); got != 0 {
				t.Fatalf("SentMessageID = %d, want 0", got)
			}
		})
	}
}
