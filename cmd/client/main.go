// Command client is a terminal ordering client. It connects to the relay,
// keeps a live session, and treats typed lines as recognized utterances so
// the full voice flow can be exercised without a microphone. Lines starting
// with "/" run local commands instead.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/conn"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/session"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/speech"
)

// lineRecognizer satisfies speech.Recognizer: each recognition session
// yields one previously typed line as the final result. ended is signalled
// after each session so the prompt loop knows when to continue.
type lineRecognizer struct {
	text  chan string
	ended chan struct{}
}

func (r *lineRecognizer) Start(locale string, cb speech.Callbacks) error {
	go func() {
		defer func() {
			cb.OnEnd()
			r.ended <- struct{}{}
		}()
		cb.OnResult(<-r.text)
	}()
	return nil
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	serverURL := os.Getenv("SERVER_WS_URL")
	if serverURL == "" {
		serverURL = "ws://localhost:8080/ws/voice"
	}

	catalog := menu.Default()

	var sess *session.Session
	mgr := conn.New(conn.Config{URL: serverURL, MaxReconnectAttempts: 5}, func(st conn.Status) {
		log.Printf("connection: %s", st)
		if sess != nil {
			sess.SetStatus(st)
		}
	})
	sess = session.New(catalog, mgr, session.DefaultTimings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Connect(ctx); err != nil {
		log.Fatalf("connect %s: %v", serverURL, err)
	}
	defer mgr.Close()

	go func() {
		for ev := range mgr.Events() {
			sess.Apply(ev)
			render(sess.Snapshot())
		}
	}()

	rec := &lineRecognizer{text: make(chan string, 1), ended: make(chan struct{})}
	capture := speech.NewCapture(rec, "en-US", sess)

	fmt.Println("Say what you want to order, or /help for local commands.")
	render(sess.Snapshot())
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !runCommand(sess, catalog, line) {
				return
			}
			continue
		}
		rec.text <- line
		capture.Begin()
		<-rec.ended
	}
}

// runCommand handles local edits typed as /commands. Returns false on /quit.
func runCommand(sess *session.Session, catalog *menu.Catalog, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/q":
		return false
	case "/next":
		sess.Next()
	case "/prev":
		sess.Prev()
	case "/add":
		v := sess.Snapshot()
		sess.AddToCart(catalog.At(v.CurrentIndex))
	case "/remove":
		if len(fields) == 2 {
			if pos, err := strconv.Atoi(fields[1]); err == nil {
				sess.RemoveFromCart(pos)
			}
		}
	case "/cart":
		fmt.Print(formatCart(sess.Snapshot()))
	case "/help":
		fmt.Println("/next /prev /add /remove N /cart /quit")
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	render(sess.Snapshot())
	return true
}

// formatCart lists the cart lines with their ordinal positions, the ones
// /remove takes.
func formatCart(v session.View) string {
	if len(v.Cart) == 0 {
		return "  cart is empty\n"
	}
	var b strings.Builder
	for i, line := range v.Cart {
		fmt.Fprintf(&b, "  %d. %s $%.2f\n", i, line.Name, line.Price)
	}
	fmt.Fprintf(&b, "  total $%.2f\n", v.CartTotal)
	return b.String()
}

func render(v session.View) {
	item := "-"
	if len(v.MenuItems) > 0 {
		item = fmt.Sprintf("%s ($%.2f)", v.MenuItems[v.CurrentIndex].Name, v.MenuItems[v.CurrentIndex].Price)
	}
	fmt.Printf("[%s] showing %s | cart %d items $%.2f\n",
		v.ConnectionStatus, item, len(v.Cart), v.CartTotal)
	if v.AIResponse != "" {
		fmt.Printf("  agent: %s\n", v.AIResponse)
	}
	if v.Notification != nil {
		fmt.Printf("  * %s\n", v.Notification.Message)
	}
}
