package pipeline

import (
	"strconv"
	"strings"
	"testing"

	"github.com/edgard/jobsift/internal/database"
)

func TestMessageLink(t *testing.T) {
	tests := []struct {
		name   string
		chatID int64
		msgID  int64
		want   string
	}{
		{"channel marked id", -1001234567890, 55, "https://t.me/c/1234567890/55"},
		{"channel unmarked", 1234567890, 7, "https://t.me/c/1234567890/7"},
		{"small group id", -4567, 3, "https://t.me/c/4567/3"},
		{"positive offset id", 1001234567890, 9, "https://t.me/c/1234567890/9"},
		{"exactly the offset", -1000000000000, 1, "https://t.me/c/1000000000000/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageLink(tt.chatID, tt.msgID); got != tt.want {
				t.Errorf("MessageLink(%d, %d) = %q, want %q", tt.chatID, tt.msgID, got, tt.want)
			}
		})
	}
}

func TestMessageLinkRoundTrip(t *testing.T) {
	for _, raw := range []int64{1, 777, 1234567890, 2147483647, 999999999999} {
		marked := -(channelIDOffset + raw)
		link := MessageLink(marked, 1)
		seg := strings.Split(strings.TrimPrefix(link, "https://t.me/c/"), "/")[0]
		got, err := strconv.ParseInt(seg, 10, 64)
		if err != nil {
			t.Fatalf("link %q: %v", link, err)
		}
		if got != raw {
			t.Errorf("marked %d: link segment = %d, want %d", marked, got, raw)
		}

		if seg := strings.Split(strings.TrimPrefix(MessageLink(-raw, 1), "https://t.me/c/"), "/")[0]; seg != strconv.FormatInt(raw, 10) {
			t.Errorf("unmarked %d: link segment = %s", -raw, seg)
		}
	}
}

func TestBuildPayload(t *testing.T) {
	batch := []database.Message{
		{ID: 10, ChatID: -1001111111111, Text: "Hiring a React dev"},
		{ID: 11, ChatID: -1002222222222, Text: ""},
		{ID: 12, ChatID: -1001111111111, Text: "line one\nline two"},
	}
	want := "10: Hiring a React dev\nLink: https://t.me/c/1111111111/10" +
		"\n\n" +
		"11: \nLink: https://t.me/c/2222222222/11" +
		"\n\n" +
		"12: line one\nline two\nLink: https://t.me/c/1111111111/12"

	got := BuildPayload(batch)
	if got != want {
		t.Errorf("BuildPayload() =\n%s\nwant\n%s", got, want)
	}
	if again := BuildPayload(batch); again != got {
		t.Error("BuildPayload is not deterministic")
	}
	if BuildPayload(nil) != "" {
		t.Error("empty batch should render empty payload")
	}
}
