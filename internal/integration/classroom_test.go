package integration

import (
	"context"
	"testing"
	"time"

	"lecturechat/internal/chattest"
	"lecturechat/internal/reconcile"
	"lecturechat/pkg/types"
)

var (
	instructor = types.User{ID: 1, Username: "prof", FirstName: "Grace", LastName: "Hopper"}
	alice      = types.User{ID: 21, Username: "alice", FirstName: "Alice"}
	bob        = types.User{ID: 22, Username: "bob", FirstName: "Bob"}
)

func TestClassroom_LectureBroadcast(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()

	ctx := context.Background()
	prof := NewClient(t, srv, "tok-prof", instructor)
	a := NewClient(t, srv, "tok-alice", alice)
	b := NewClient(t, srv, "tok-bob", bob)

	for _, c := range []*Client{prof, a, b} {
		if err := c.Coord.JoinRoom(ctx, "lecture_42"); err != nil {
			t.Fatalf("%s failed to join: %v", c.User.Username, err)
		}
	}
	Eventually(t, "three members", func() bool { return srv.Members("lecture_42") == 3 })

	list := reconcile.NewList(instructor.ID, reconcile.Append)
	prof.Coord.OnMessage(func(m types.ChatMessage) { list.Apply(m) })
	list.AddOptimistic(instructor, "Welcome to lecture 42", nil)

	id, err := prof.Coord.SendMessageWait(ctx, "Welcome to lecture 42", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for _, c := range []*Client{prof, a, b} {
		c := c
		Eventually(t, c.User.Username+" receives the welcome", func() bool {
			msgs := c.Messages()
			return len(msgs) == 1 && msgs[0].MessageID == id && msgs[0].Message == "Welcome to lecture 42"
		})
	}

	msgs := a.Messages()
	if msgs[0].UserID != instructor.ID || msgs[0].FirstName != "Grace" || msgs[0].Type != types.MessageTypeText {
		t.Errorf("Unexpected normalized message %+v", msgs[0])
	}

	Eventually(t, "optimistic entry replaced", func() bool {
		got := list.Messages()
		return len(got) == 1 && got[0].MessageID == id && !got[0].IsOptimistic
	})
}

func TestClassroom_DirectMessagesStayPrivate(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()

	ctx := context.Background()
	a := NewClient(t, srv, "tok-alice", alice)
	b := NewClient(t, srv, "tok-bob", bob)
	prof := NewClient(t, srv, "tok-prof", instructor)

	roomA, err := a.Coord.JoinDirectMessageRoom(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("Alice DM join: %v", err)
	}
	roomB, err := b.Coord.JoinDirectMessageRoom(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("Bob DM join: %v", err)
	}
	if roomA != roomB || roomA != "dm_21_22" {
		t.Fatalf("Expected both sides in dm_21_22, got %s and %s", roomA, roomB)
	}
	if err := prof.Coord.JoinRoom(ctx, "lecture_42"); err != nil {
		t.Fatalf("Prof join: %v", err)
	}
	Eventually(t, "DM has two members", func() bool { return srv.Members(roomA) == 2 })

	if _, err := a.Coord.SendMessageWait(ctx, "did you get the notes?", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	Eventually(t, "bob receives the DM", func() bool { return len(b.Messages()) == 1 })

	if got := prof.Messages(); len(got) != 0 {
		t.Errorf("Instructor should not see DM traffic, got %+v", got)
	}
}

func TestClassroom_TypingReachesPeersOnly(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()

	ctx := context.Background()
	a := NewClient(t, srv, "tok-alice", alice)
	b := NewClient(t, srv, "tok-bob", bob)
	for _, c := range []*Client{a, b} {
		if err := c.Coord.JoinRoom(ctx, "lecture_7"); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}
	Eventually(t, "two members", func() bool { return srv.Members("lecture_7") == 2 })

	typists := reconcile.NewTypists(bob.ID)
	b.Coord.OnTyping(func(ev types.TypingEvent) { typists.Apply(ev) })

	if err := a.Coord.SendTyping(true); err != nil {
		t.Fatalf("SendTyping: %v", err)
	}
	Eventually(t, "bob sees alice typing", func() bool {
		active := typists.Active()
		return len(active) == 1 && active[0].UserID == alice.ID
	})
	if len(a.Typing()) != 0 {
		t.Error("Alice should not receive her own typing event")
	}

	if err := a.Coord.SendTyping(false); err != nil {
		t.Fatalf("SendTyping: %v", err)
	}
	Eventually(t, "alice stops typing", func() bool { return len(typists.Active()) == 0 })
}

func TestClassroom_EveryoneRejoinsAfterServerDrop(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()

	ctx := context.Background()
	a := NewClient(t, srv, "tok-alice", alice)
	b := NewClient(t, srv, "tok-bob", bob)
	for _, c := range []*Client{a, b} {
		if err := c.Coord.JoinRoom(ctx, "lecture_9"); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}
	Eventually(t, "two members", func() bool { return srv.Members("lecture_9") == 2 })

	if n := srv.Kick(); n != 2 {
		t.Fatalf("Expected to kick 2 peers, kicked %d", n)
	}
	Eventually(t, "both redialed", func() bool { return srv.Dials() == 4 })
	Eventually(t, "both rejoined", func() bool {
		return srv.Members("lecture_9") == 2 && a.Coord.IsConnected() && b.Coord.IsConnected()
	})

	if _, err := b.Coord.SendMessageWait(ctx, "still here?", nil); err != nil {
		t.Fatalf("Send after reconnect: %v", err)
	}
	Eventually(t, "alice receives after reconnect", func() bool {
		msgs := a.Messages()
		return len(msgs) == 1 && msgs[0].Message == "still here?"
	})
	if errs := a.Errors(); len(errs) != 0 {
		t.Errorf("Unexpected errors after reconnect: %v", errs)
	}
}

func TestClassroom_TokenPersistsAfterDispose(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()

	a := NewClient(t, srv, "tok-alice", alice)
	if err := a.Coord.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	a.Coord.Dispose()
	<-a.Coord.Done()

	token, err := a.Store.Get(context.Background(), types.KeyAccessToken)
	if err != nil || token != "tok-alice" {
		t.Errorf("Expected token to persist in the sqlite store, got %q (%v)", token, err)
	}
	if !srv.WaitConnections(0, 2*time.Second) {
		t.Error("Expected socket closed after dispose")
	}
}
