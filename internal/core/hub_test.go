package core

import (
	"context"
	"testing"
	"time"

	"github.com/parley-chat/parley-server/internal/store/sqlite"
)

func TestJoinDistinctNamesAppearInUserLists(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")

	ev := mustEvent(t, alice.Events, EventJoinSuccess)
	if ev.Identity.Name != "Alice" || ev.Identity.Role != RoleRegular {
		t.Fatalf("unexpected join identity: %+v", ev.Identity)
	}
	mustEvent(t, alice.Events, EventHistory)

	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)

	// Both clients receive the roster including both names.
	lists := mustEvent(t, bob.Events, EventUserLists)
	if len(lists.Users) != 2 {
		t.Fatalf("expected 2 connected users, got %d", len(lists.Users))
	}
	if lists.Users[0].Name != "Alice" || lists.Users[1].Name != "Bob" {
		t.Fatalf("unexpected roster order: %+v", lists.Users)
	}
	mustEvent(t, alice.Events, EventUserLists)
}

func TestJoinReplayPrecedesLiveBroadcast(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)
	hub.Submit(Command{Kind: CommandChatMessage, Client: alice, Text: "early bird"})
	mustEvent(t, alice.Events, EventNewMessage)

	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)

	history := mustEvent(t, bob.Events, EventHistory)
	if len(history.Messages) != 1 || history.Messages[0].Text != "early bird" {
		t.Fatalf("unexpected history: %+v", history.Messages)
	}
}

func TestJoinDuplicateNameRejected(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	imposter := connect(hub)
	join(hub, imposter, "Alice", "")

	ev := mustEvent(t, imposter.Events, EventAlert)
	if ev.Alert.Code != ErrCodeNameTaken {
		t.Fatalf("expected name_taken alert, got %+v", ev.Alert)
	}

	// The connection stays open and a different name still works.
	join(hub, imposter, "Alice2", "")
	mustEvent(t, imposter.Events, EventJoinSuccess)
}

func TestJoinBoundConnectionRejected(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	join(hub, alice, "Alice3", "")
	ev := mustEvent(t, alice.Events, EventAlert)
	if ev.Alert.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined alert, got %+v", ev.Alert)
	}
}

func TestAdminJoinWrongPasswordClosesConnection(t *testing.T) {
	hub := newTestHub(t)

	wannabe := connect(hub)
	join(hub, wannabe, "Admin", "letmein")

	ev := mustEvent(t, wannabe.Events, EventConnectionDenied)
	if ev.Reason != "incorrect admin password" {
		t.Fatalf("unexpected denial reason: %q", ev.Reason)
	}
	mustClosed(t, wannabe.Events)

	// No identity was registered for the reserved name.
	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	success := mustEvent(t, admin.Events, EventJoinSuccess)
	if success.Identity.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %v", success.Identity.Role)
	}
}

func TestAdminResumeTokenGrantsAdminSeat(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	success := mustEvent(t, admin.Events, EventJoinSuccess)
	if success.Token == "" {
		t.Fatalf("expected a resume token for the admin seat")
	}

	hub.Unregister(admin)
	mustClosed(t, admin.Events)

	rejoined := connect(hub)
	hub.Submit(Command{Kind: CommandJoin, Client: rejoined, Name: "Admin", Token: success.Token})
	ev := mustEvent(t, rejoined.Events, EventJoinSuccess)
	if ev.Identity.Role != RoleAdmin {
		t.Fatalf("expected admin role from resume token, got %v", ev.Identity.Role)
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)

	hub.Submit(Command{Kind: CommandChatMessage, Client: bob, Text: "hi"})

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventNewMessage)
		if ev.Message.Author != "Bob" || ev.Message.Text != "hi" {
			t.Fatalf("unexpected message event: %+v", ev.Message)
		}
		if ev.Message.AuthorIsAdmin {
			t.Fatalf("regular message flagged as admin")
		}
	}
}

func TestChatBeforeJoinRejected(t *testing.T) {
	hub := newTestHub(t)

	lurker := connect(hub)
	hub.Submit(Command{Kind: CommandChatMessage, Client: lurker, Text: "hello?"})

	ev := mustEvent(t, lurker.Events, EventAlert)
	if ev.Alert.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined alert, got %+v", ev.Alert)
	}
}

func TestBanFlow(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)
	mustEvent(t, admin.Events, EventUserLists)

	bob := connect(hub)
	join(hub, bob, "Bob", "")
	bobIdentity := mustEvent(t, bob.Events, EventJoinSuccess).Identity
	mustEvent(t, admin.Events, EventUserLists)

	hub.Submit(Command{Kind: CommandBanUser, Client: admin, TargetID: bobIdentity.ID})

	notice := mustEvent(t, bob.Events, EventBannedNotice)
	if notice.Reason == "" {
		t.Fatalf("expected a ban reason")
	}
	mustClosed(t, bob.Events)

	lists := mustEvent(t, admin.Events, EventUserLists)
	found := false
	for _, b := range lists.Bans {
		if b.Name == "Bob" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Bob in ban list, got %+v", lists.Bans)
	}

	// The banned name cannot rejoin until unbanned.
	retry := connect(hub)
	join(hub, retry, "Bob", "")
	denied := mustEvent(t, retry.Events, EventConnectionDenied)
	if denied.Reason != "banned" {
		t.Fatalf("unexpected denial reason: %q", denied.Reason)
	}
	mustClosed(t, retry.Events)

	hub.Submit(Command{Kind: CommandUnbanUser, Client: admin, TargetID: bobIdentity.ID})
	mustEvent(t, admin.Events, EventUserLists)

	back := connect(hub)
	join(hub, back, "Bob", "")
	mustEvent(t, back.Events, EventJoinSuccess)
}

func TestBanUnknownIDAlertsCaller(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)

	hub.Submit(Command{Kind: CommandBanUser, Client: admin, TargetID: "no-such-id"})
	ev := mustEvent(t, admin.Events, EventAlert)
	if ev.Alert.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found alert, got %+v", ev.Alert)
	}

	hub.Submit(Command{Kind: CommandUnbanUser, Client: admin, TargetID: "no-such-id"})
	ev = mustEvent(t, admin.Events, EventAlert)
	if ev.Alert.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found alert, got %+v", ev.Alert)
	}
}

func TestUnauthorizedAdminActionLeavesStateUnchanged(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)
	hub.Submit(Command{Kind: CommandChatMessage, Client: alice, Text: "keep me"})
	mustEvent(t, alice.Events, EventNewMessage)

	hub.Submit(Command{Kind: CommandClearChat, Client: alice})
	ev := mustEvent(t, alice.Events, EventAlert)
	if ev.Alert.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized alert, got %+v", ev.Alert)
	}

	// History is intact: a new join still replays the message.
	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)
	history := mustEvent(t, bob.Events, EventHistory)
	if len(history.Messages) != 1 || history.Messages[0].Text != "keep me" {
		t.Fatalf("history changed by unauthorized action: %+v", history.Messages)
	}
}

func TestClearChatEmptiesHistoryForEveryone(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)
	// Consume the join replay so the next history event is the clear.
	mustEvent(t, admin.Events, EventHistory)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	hub.Submit(Command{Kind: CommandChatMessage, Client: alice, Text: "soon gone"})
	mustEvent(t, alice.Events, EventNewMessage)

	hub.Submit(Command{Kind: CommandClearChat, Client: admin})

	for _, c := range []*Client{admin, alice} {
		history := mustEvent(t, c.Events, EventHistory)
		if len(history.Messages) != 0 {
			t.Fatalf("expected empty history after clear, got %+v", history.Messages)
		}
	}

	// Replay after clear is empty too.
	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)
	history := mustEvent(t, bob.Events, EventHistory)
	if len(history.Messages) != 0 {
		t.Fatalf("expected empty replay after clear, got %+v", history.Messages)
	}
}

func TestFeatureRequestReachesOnlyAdmins(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)
	// Consume the queue snapshot delivered to a joining admin.
	mustEvent(t, admin.Events, EventFeatureRequests)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	hub.Submit(Command{Kind: CommandFeatureRequest, Client: alice, Text: "dark mode"})

	ev := mustEvent(t, admin.Events, EventFeatureRequests)
	if len(ev.Requests) != 1 || ev.Requests[0].Text != "dark mode" || ev.Requests[0].Author != "Alice" {
		t.Fatalf("unexpected feature request event: %+v", ev.Requests)
	}

	assertNoEvent(t, alice.Events, EventFeatureRequests)
}

func TestAdminCannotSubmitFeatureRequest(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)
	mustEvent(t, admin.Events, EventFeatureRequests)

	hub.Submit(Command{Kind: CommandFeatureRequest, Client: admin, Text: "more power"})

	ev := mustEvent(t, admin.Events, EventAlert)
	if ev.Alert.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized alert, got %+v", ev.Alert)
	}
	assertNoEvent(t, admin.Events, EventFeatureRequests)
}

func TestDeleteFeatureRequest(t *testing.T) {
	hub := newTestHub(t)

	admin := connect(hub)
	join(hub, admin, "Admin", testAdminPassword)
	mustEvent(t, admin.Events, EventJoinSuccess)
	mustEvent(t, admin.Events, EventFeatureRequests)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)

	hub.Submit(Command{Kind: CommandFeatureRequest, Client: alice, Text: "emoji"})
	queue := mustEvent(t, admin.Events, EventFeatureRequests)
	if len(queue.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(queue.Requests))
	}

	hub.Submit(Command{Kind: CommandDeleteFeatureRequest, Client: admin, TargetID: queue.Requests[0].ID})
	queue = mustEvent(t, admin.Events, EventFeatureRequests)
	if len(queue.Requests) != 0 {
		t.Fatalf("expected empty queue after delete, got %+v", queue.Requests)
	}
}

func TestDisconnectBeforeJoinLeavesNoTrace(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)
	mustEvent(t, alice.Events, EventUserLists)

	ghost := connect(hub)
	hub.Unregister(ghost)
	mustClosed(t, ghost.Events)

	// No roster change is broadcast for a connection that never joined.
	assertNoEvent(t, alice.Events, EventUserLists)
}

func TestDisconnectedUserLeavesRoster(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(hub)
	join(hub, alice, "Alice", "")
	mustEvent(t, alice.Events, EventJoinSuccess)
	mustEvent(t, alice.Events, EventUserLists)

	bob := connect(hub)
	join(hub, bob, "Bob", "")
	mustEvent(t, bob.Events, EventJoinSuccess)
	mustEvent(t, alice.Events, EventUserLists)

	hub.Unregister(bob)
	mustClosed(t, bob.Events)

	lists := mustEvent(t, alice.Events, EventUserLists)
	if len(lists.Users) != 1 || lists.Users[0].Name != "Alice" {
		t.Fatalf("expected only Alice in roster, got %+v", lists.Users)
	}

	// The name is free again.
	again := connect(hub)
	join(hub, again, "Bob", "")
	mustEvent(t, again.Events, EventJoinSuccess)
}

func TestSubmitAfterShutdownDoesNotBlock(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := NewHub(Options{AdminName: "Admin", Store: st})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()
	cancel()
	<-runDone

	// Enough commands to overflow the buffer; every send must return.
	sent := make(chan struct{})
	go func() {
		c := NewClient()
		hub.Register(c)
		for i := 0; i < 200; i++ {
			hub.Submit(Command{Kind: CommandChatMessage, Client: c, Text: "late"})
		}
		hub.Unregister(c)
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("send on a stopped hub blocked")
	}
}
