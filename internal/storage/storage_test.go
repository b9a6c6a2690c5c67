package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"issuecast/internal/channel"
	"issuecast/internal/digest"
	logx "issuecast/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "issuecast.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testBatch() digest.Batch {
	return digest.Batch{
		{ID: 1, Title: "fix the flag parser", URL: "https://example.com/i/1", RepoURL: "https://example.com/r/a", Category: digest.CategoryGeneral},
		{ID: 2, Title: "docs typo", URL: "https://example.com/i/2", RepoURL: "https://example.com/r/b", Category: digest.CategoryGeneral},
		{ID: 3, Title: "add contract tests", URL: "https://example.com/i/3", RepoURL: "https://example.com/r/c", Category: digest.CategorySpotlight},
	}
}

func TestSettingsDefaults(t *testing.T) {
	st := newTestStore(t)
	set, err := st.Settings(context.Background())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if set.Stars != 1000 {
		t.Fatalf("stars = %d, want 1000", set.Stars)
	}
	if set.IssuesPerRepo != 1 {
		t.Fatalf("issues per repo = %d, want 1", set.IssuesPerRepo)
	}
	if len(set.SendHours) != 1 || set.SendHours[0] != 16 {
		t.Fatalf("send hours = %v, want [16]", set.SendHours)
	}
	if set.GeneralTopic == "" || set.SpotlightTopic == "" {
		t.Fatalf("topics must be seeded, got %q / %q", set.GeneralTopic, set.SpotlightTopic)
	}
	if set.GeneralTopic == set.SpotlightTopic {
		t.Fatalf("tracks must default to distinct topics")
	}
	if set.LastSentUnix != 0 {
		t.Fatalf("last sent = %d, want 0", set.LastSentUnix)
	}
}

func TestSetSettingUnknownKey(t *testing.T) {
	st := newTestStore(t)
	err := st.SetSetting(context.Background(), "no_such_key", "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendHoursEditing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AddSendHour(ctx, 9); err != nil {
		t.Fatalf("add hour: %v", err)
	}
	if err := st.AddSendHour(ctx, 16); err != nil {
		t.Fatalf("re-adding an existing hour must be a no-op, got %v", err)
	}
	if err := st.AddSendHour(ctx, 24); err == nil {
		t.Fatalf("expected range error for hour 24")
	}

	set, err := st.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if len(set.SendHours) != 2 {
		t.Fatalf("send hours = %v, want two entries", set.SendHours)
	}
	if !set.AllowsHour(9) || !set.AllowsHour(16) || set.AllowsHour(10) {
		t.Fatalf("gate mismatch for hours %v", set.SendHours)
	}

	if err := st.RemoveSendHour(ctx, 16); err != nil {
		t.Fatalf("remove hour: %v", err)
	}
	set, _ = st.Settings(ctx)
	if set.AllowsHour(16) {
		t.Fatalf("hour 16 should be gone, got %v", set.SendHours)
	}
}

func TestDedup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seen, err := st.SeenIssue(ctx, 1)
	if err != nil || seen {
		t.Fatalf("fresh issue reported seen (seen=%v err=%v)", seen, err)
	}
	if err := st.MarkSeen(ctx, testBatch()); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		seen, err := st.SeenIssue(ctx, id)
		if err != nil {
			t.Fatalf("seen %d: %v", id, err)
		}
		if !seen {
			t.Fatalf("issue %d should be seen", id)
		}
	}
	// Re-marking overlapping IDs must not fail.
	if err := st.MarkSeen(ctx, testBatch()); err != nil {
		t.Fatalf("re-mark: %v", err)
	}
}

func TestDestinationLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AddDestination(ctx, channel.KindTelegram, "-100"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := st.AddDestination(ctx, channel.KindTelegram, "-100"); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate add: got %v, want ErrExists", err)
	}
	// Same ID under the other kind is a distinct destination.
	if err := st.AddDestination(ctx, channel.KindDiscord, "-100"); err != nil {
		t.Fatalf("add other kind: %v", err)
	}

	dests, err := st.Destinations(ctx, channel.KindTelegram)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dests) != 1 || dests[0].State != StateIdle {
		t.Fatalf("list = %+v, want one idle row", dests)
	}

	if err := st.RemoveDestination(ctx, channel.KindTelegram, "-100"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := st.RemoveDestination(ctx, channel.KindTelegram, "-100"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove absent: got %v, want ErrNotFound", err)
	}
}

func TestArmCycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"-1", "-2"} {
		if err := st.AddDestination(ctx, channel.KindTelegram, id); err != nil {
			t.Fatalf("add telegram %s: %v", id, err)
		}
	}
	if err := st.AddDestination(ctx, channel.KindDiscord, "555"); err != nil {
		t.Fatalf("add discord: %v", err)
	}

	at := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)
	if err := st.ArmCycle(ctx, "cycle-1", at, testBatch()); err != nil {
		t.Fatalf("arm: %v", err)
	}

	set, err := st.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if set.LastSentUnix != at.Unix() {
		t.Fatalf("last sent = %d, want %d", set.LastSentUnix, at.Unix())
	}

	tg, err := st.PendingDestinations(ctx, channel.KindTelegram, 10)
	if err != nil {
		t.Fatalf("pending telegram: %v", err)
	}
	if len(tg) != 2 {
		t.Fatalf("pending telegram = %d, want 2", len(tg))
	}
	dc, err := st.PendingDestinations(ctx, channel.KindDiscord, 10)
	if err != nil {
		t.Fatalf("pending discord: %v", err)
	}
	if len(dc) != 1 {
		t.Fatalf("pending discord = %d, want 1", len(dc))
	}

	cycleID, batch, err := st.Batch(ctx)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if cycleID != "cycle-1" {
		t.Fatalf("cycle id = %q", cycleID)
	}
	want := testBatch()
	if len(batch) != len(want) {
		t.Fatalf("batch size = %d, want %d", len(batch), len(want))
	}
	for i := range want {
		if batch[i] != want[i] {
			t.Fatalf("batch[%d] = %+v, want %+v", i, batch[i], want[i])
		}
	}

	if err := st.Disarm(ctx, channel.KindTelegram, "-1"); err != nil {
		t.Fatalf("disarm: %v", err)
	}
	tg, _ = st.PendingDestinations(ctx, channel.KindTelegram, 10)
	if len(tg) != 1 || tg[0].ExternalID != "-2" {
		t.Fatalf("pending after disarm = %+v", tg)
	}
	// Disarming an idle row is not an error.
	if err := st.Disarm(ctx, channel.KindTelegram, "-1"); err != nil {
		t.Fatalf("second disarm: %v", err)
	}
}

func TestArmCycleReplacesBatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.ArmCycle(ctx, "cycle-1", time.Now(), testBatch()); err != nil {
		t.Fatalf("arm first: %v", err)
	}
	next := digest.Batch{
		{ID: 9, Title: "later issue", URL: "https://example.com/i/9", RepoURL: "https://example.com/r/z", Category: digest.CategoryGeneral},
	}
	if err := st.ArmCycle(ctx, "cycle-2", time.Now(), next); err != nil {
		t.Fatalf("arm second: %v", err)
	}

	cycleID, batch, err := st.Batch(ctx)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if cycleID != "cycle-2" || len(batch) != 1 || batch[0].ID != 9 {
		t.Fatalf("batch not replaced: cycle=%q batch=%+v", cycleID, batch)
	}
}

func TestUsersAndAdmins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AddUser(ctx, 100); err != nil {
		t.Fatalf("add user: %v", err)
	}
	ok, err := st.IsAdmin(ctx, 100)
	if err != nil || ok {
		t.Fatalf("plain user counted as admin (ok=%v err=%v)", ok, err)
	}
	// Unknown users are simply not admins.
	ok, err = st.IsAdmin(ctx, 200)
	if err != nil || ok {
		t.Fatalf("unknown user counted as admin (ok=%v err=%v)", ok, err)
	}

	if err := st.EnsureAdmin(ctx, 100); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := st.EnsureAdmin(ctx, 100); err != nil {
		t.Fatalf("ensure admin twice: %v", err)
	}
	ok, _ = st.IsAdmin(ctx, 100)
	if !ok {
		t.Fatalf("user 100 should be admin")
	}

	if err := st.SetAdmin(ctx, 300, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("promote unknown: got %v, want ErrNotFound", err)
	}
	if err := st.SetAdmin(ctx, 100, false); err != nil {
		t.Fatalf("demote: %v", err)
	}
	ok, _ = st.IsAdmin(ctx, 100)
	if ok {
		t.Fatalf("user 100 should be demoted")
	}

	if err := st.EnsureAdmin(ctx, 500); err != nil {
		t.Fatalf("ensure new admin: %v", err)
	}
	admins, err := st.Admins(ctx)
	if err != nil {
		t.Fatalf("admins: %v", err)
	}
	if len(admins) != 1 || admins[0] != 500 {
		t.Fatalf("admins = %v, want [500]", admins)
	}
}
