package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"issuecast/internal/channel"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

func newTestConversations(t *testing.T) (*Conversations, *storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewConversations(st, logx.Nop()), st
}

func TestConversationEditsSetting(t *testing.T) {
	conv, st := newTestConversations(t)
	ctx := context.Background()
	const user = int64(10)

	prompt := conv.Begin(user, StageStars)
	if !strings.Contains(prompt, "star") {
		t.Fatalf("prompt = %q", prompt)
	}
	if !conv.Active(user) {
		t.Fatalf("stage should be open")
	}

	reply := conv.Handle(ctx, user, "500")
	if !strings.Contains(reply, "500") {
		t.Fatalf("reply = %q", reply)
	}
	if conv.Active(user) {
		t.Fatalf("stage should close on success")
	}

	set, _ := st.Settings(ctx)
	if set.Stars != 500 {
		t.Fatalf("stars = %d, want 500", set.Stars)
	}
}

func TestConversationRePromptsOnInvalidInput(t *testing.T) {
	conv, st := newTestConversations(t)
	ctx := context.Background()
	const user = int64(10)

	conv.Begin(user, StagePerRepo)
	for _, bad := range []string{"zero", "0", "4"} {
		reply := conv.Handle(ctx, user, bad)
		if !strings.Contains(reply, "Invalid") {
			t.Fatalf("input %q accepted: %q", bad, reply)
		}
		if !conv.Active(user) {
			t.Fatalf("stage closed by invalid input %q", bad)
		}
	}

	conv.Handle(ctx, user, "3")
	set, _ := st.Settings(ctx)
	if set.IssuesPerRepo != 3 {
		t.Fatalf("issues per repo = %d, want 3", set.IssuesPerRepo)
	}
}

func TestConversationCancel(t *testing.T) {
	conv, st := newTestConversations(t)
	ctx := context.Background()
	const user = int64(10)

	conv.Begin(user, StageStars)
	reply := conv.Handle(ctx, user, "/cancel")
	if reply != "Canceled." {
		t.Fatalf("reply = %q", reply)
	}
	if conv.Active(user) {
		t.Fatalf("cancel left the stage open")
	}
	set, _ := st.Settings(ctx)
	if set.Stars != 1000 {
		t.Fatalf("cancel changed the setting: %d", set.Stars)
	}
}

func TestConversationOnePerUser(t *testing.T) {
	conv, _ := newTestConversations(t)
	const user = int64(10)

	conv.Begin(user, StageStars)
	reply := conv.Begin(user, StagePerRepo)
	if !strings.Contains(reply, "already") {
		t.Fatalf("second Begin should refuse, got %q", reply)
	}

	// Another user edits independently.
	other := conv.Begin(int64(20), StagePerRepo)
	if strings.Contains(other, "already") {
		t.Fatalf("sessions leaked across users: %q", other)
	}
}

func TestConversationDestinations(t *testing.T) {
	conv, st := newTestConversations(t)
	ctx := context.Background()
	const user = int64(10)

	conv.Begin(user, StageAddGroup)
	conv.Handle(ctx, user, "-100200")
	dests, _ := st.Destinations(ctx, channel.KindTelegram)
	if len(dests) != 1 || dests[0].ExternalID != "-100200" {
		t.Fatalf("destinations = %+v", dests)
	}

	// Duplicate registration re-prompts instead of closing.
	conv.Begin(user, StageAddGroup)
	reply := conv.Handle(ctx, user, "-100200")
	if !strings.Contains(reply, "already registered") {
		t.Fatalf("reply = %q", reply)
	}
	if !conv.Active(user) {
		t.Fatalf("duplicate should keep the stage open")
	}
	conv.Handle(ctx, user, "/cancel")

	conv.Begin(user, StageRemoveGroup)
	conv.Handle(ctx, user, "-100200")
	dests, _ = st.Destinations(ctx, channel.KindTelegram)
	if len(dests) != 0 {
		t.Fatalf("destination not removed: %+v", dests)
	}
}

func TestConversationAdmins(t *testing.T) {
	conv, st := newTestConversations(t)
	ctx := context.Background()
	const user = int64(10)

	conv.Begin(user, StageAddAdmin)
	conv.Handle(ctx, user, "777")
	ok, _ := st.IsAdmin(ctx, 777)
	if !ok {
		t.Fatalf("user 777 should be admin")
	}

	conv.Begin(user, StageRemoveAdmin)
	conv.Handle(ctx, user, "777")
	ok, _ = st.IsAdmin(ctx, 777)
	if ok {
		t.Fatalf("user 777 should be demoted")
	}
}

func TestConversationIgnoresIdleText(t *testing.T) {
	conv, _ := newTestConversations(t)
	if reply := conv.Handle(context.Background(), 10, "hello"); reply != "" {
		t.Fatalf("idle text produced a reply: %q", reply)
	}
}

func TestValidDate(t *testing.T) {
	for _, ok := range []string{"2021-01-01", "2026-12-31"} {
		if !validDate(ok) {
			t.Fatalf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"2021-1-1", "01-01-2021", "2021-13-01", "2021-00-10", "1999-01-01", "soon"} {
		if validDate(bad) {
			t.Fatalf("%q accepted", bad)
		}
	}
}
