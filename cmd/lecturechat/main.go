package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"lecturechat/internal/ack"
	"lecturechat/internal/app"
	"lecturechat/internal/config"
	"lecturechat/internal/coordinator"
	"lecturechat/internal/reconcile"
	"lecturechat/pkg/types"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// console serializes terminal output from callbacks and watchers
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

// chat is one terminal chat screen
type chat struct {
	coord   *coordinator.Coordinator
	me      *types.User
	list    *reconcile.List
	typists *reconcile.Typists
	con     *console
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("lecturechat", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", os.Getenv("LECTURECHAT_CONFIG_FILE"), "path to a JSON config file")
	roomID := fs.String("room", "", "room to join")
	dmWith := fs.Int64("dm", 0, "user id to open a direct message room with")
	invitations := fs.Bool("invitations", false, "subscribe to invitation events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithPrecedence(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		application.Stop(shutdownCtx)
	}()

	coord := application.Coordinator()
	me, err := coord.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("no signed-in user: %w", err)
	}

	c := &chat{
		coord:   coord,
		me:      me,
		list:    reconcile.NewList(me.ID, reconcile.Append),
		typists: reconcile.NewTypists(me.ID),
		con:     &console{out: out},
	}
	c.subscribe()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	switch {
	case *dmWith > 0:
		id, err := coord.JoinDirectMessageRoom(ctx, me.ID, *dmWith)
		if err != nil {
			return fmt.Errorf("failed to open direct messages: %w", err)
		}
		c.con.printf("* joined %s", id)
	case *roomID != "":
		if err := coord.JoinRoom(ctx, *roomID); err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}
		c.con.printf("* joined %s", *roomID)
	}
	if *invitations {
		coord.JoinInvitations()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Received signal, shutting down gracefully")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handleLine(line); quit {
				return nil
			}
		}
	}
}

func (c *chat) subscribe() {
	c.coord.OnMessage(func(m types.ChatMessage) {
		if c.list.Apply(m) == reconcile.Duplicate {
			return
		}
		c.con.printf("[%d] %s: %s", m.MessageID, displayName(m), body(m))
	})
	c.coord.OnTyping(func(ev types.TypingEvent) {
		if !c.typists.Apply(ev) {
			return
		}
		names := make([]string, 0, 2)
		for _, t := range c.typists.Active() {
			names = append(names, t.Username)
		}
		if len(names) > 0 {
			c.con.printf("* %s typing...", strings.Join(names, ", "))
		}
	})
	c.coord.OnUserJoin(func(ev types.UserEvent) { c.con.printf("* %s joined", ev.Username) })
	c.coord.OnUserLeave(func(ev types.UserEvent) { c.con.printf("* %s left", ev.Username) })
	c.coord.OnEntityDeleted(func(ev types.EntityDeletedEvent) {
		if ev.EntityType == "message" {
			c.list.Remove(ev.EntityID)
		}
		c.con.printf("* %s %d deleted", ev.EntityType, ev.EntityID)
	})
	c.coord.OnConnectionChange(func(connected bool) {
		if connected {
			c.con.printf("* connected")
		} else {
			c.con.printf("* disconnected")
		}
	})
	c.coord.OnError(func(msg string) { c.con.printf("! %s", msg) })
}

// handleLine runs a slash command or sends the line; it reports whether
// the user asked to quit.
func (c *chat) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "/quit":
		return true
	case "/leave":
		c.coord.LeaveRoom()
		c.typists.Clear()
	case "/join":
		if err := c.coord.JoinRoom(context.Background(), arg); err != nil {
			c.con.printf("! %v", err)
		}
	case "/read":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err == nil {
			err = c.coord.MarkRead(id)
		}
		if err != nil {
			c.con.printf("! %v", err)
		}
	case "/retry":
		placeholder, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			c.con.printf("! usage: /retry <id>")
			return false
		}
		msg, ok := c.list.Retry(placeholder)
		if !ok {
			c.con.printf("! nothing to retry for %d", placeholder)
			return false
		}
		c.send(msg.MessageID, msg.Message, nil)
	case "/typing":
		c.coord.SendTyping(arg != "off")
	default:
		if strings.HasPrefix(cmd, "/") {
			c.con.printf("! unknown command %s", cmd)
			return false
		}
		if line == "" {
			return false
		}
		placeholder := c.list.AddOptimistic(*c.me, line, nil)
		c.send(placeholder.MessageID, line, nil)
	}
	return false
}

// send emits text and marks the optimistic entry failed if the send does
// not succeed.
func (c *chat) send(placeholder int64, text string, meta types.Metadata) {
	p, err := c.coord.SendMessage(text, meta)
	if err != nil {
		c.list.MarkFailed(placeholder)
		if !errors.Is(err, coordinator.ErrEmptyMessage) {
			c.con.printf("! not sent, /retry %d", placeholder)
		}
		return
	}
	c.coord.SendTyping(false)

	go func() {
		<-p.Done()
		outcome := p.Outcome()
		if unsent(outcome.State) {
			c.list.MarkFailed(placeholder)
			c.con.printf("! not sent, /retry %d", placeholder)
		}
	}()
}

// unsent reports whether a resolved send never reached the room. A send
// dropped by a disconnect counts, so it is offered for retry.
func unsent(state ack.State) bool {
	switch state {
	case ack.Errored, ack.TimedOut, ack.Dropped:
		return true
	}
	return false
}

func displayName(m types.ChatMessage) string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}

func body(m types.ChatMessage) string {
	if m.Type != types.MessageTypeText && m.FileURL != "" {
		if m.Message == "" {
			return fmt.Sprintf("<%s %s>", m.Type, m.FileURL)
		}
		return fmt.Sprintf("%s <%s %s>", m.Message, m.Type, m.FileURL)
	}
	return m.Message
}
