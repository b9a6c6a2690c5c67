package telegram

import (
	"context"
	"strings"
	"testing"

	"issuecast/internal/digest"
)

func TestFormatEscapesAndOrders(t *testing.T) {
	s := &Sender{}
	batch := digest.Batch{
		{ID: 1, Title: "support <generics> & more", URL: "https://example.com/1", Category: digest.CategoryGeneral},
		{ID: 2, Title: "spotlight pick", URL: "https://example.com/2", Category: digest.CategorySpotlight},
	}

	msg := s.Format(batch)

	if !strings.Contains(msg, "support &lt;generics&gt; &amp; more") {
		t.Fatalf("title not escaped:\n%s", msg)
	}
	if strings.Contains(msg, "<generics>") {
		t.Fatalf("raw angle brackets leaked into HTML:\n%s", msg)
	}
	// Spotlight issues lead the digest.
	if strings.Index(msg, "example.com/2") > strings.Index(msg, "example.com/1") {
		t.Fatalf("spotlight issue not listed first:\n%s", msg)
	}
	if !strings.HasPrefix(msg, "📌 <b>Fresh open-source issues</b>:") {
		t.Fatalf("missing header:\n%s", msg)
	}
}

func TestSendRejectsBadDestination(t *testing.T) {
	s := &Sender{}
	if err := s.Send(context.Background(), "not-a-chat-id", "msg"); err == nil {
		t.Fatalf("expected error for non-numeric chat ID")
	}
}
