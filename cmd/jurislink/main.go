// jurislink is a terminal front for the conversation core: a thin REPL
// over the session store and the conversation engine. All product
// semantics live in internal/; this binary is presentation plus wiring.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/auth"
	"github.com/jurislink/jurislink-client/internal/config"
	"github.com/jurislink/jurislink-client/internal/engine"
	"github.com/jurislink/jurislink-client/internal/reasoning"
	"github.com/jurislink/jurislink-client/internal/reveal"
	"github.com/jurislink/jurislink-client/internal/session"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
		log.Fatal("state dir", zap.Error(err))
	}
	cache, err := session.OpenCache(cfg.CachePath)
	if err != nil {
		log.Fatal("open cache", zap.Error(err))
	}
	defer func() { _ = cache.Close() }()

	var tokens auth.TokenSource
	if cfg.AuthToken != "" {
		tokens = auth.NewStaticTokenSource(cfg.AuthToken, cfg.UserID)
	} else {
		tokens = auth.NewDemoTokenSource(cfg.UserID)
	}

	remote := session.NewRemoteClient(cfg.SessionAPIBaseURL, tokens)
	outbox := session.NewOutbox(remote, log, cfg.OutboxDepth, cfg.OutboxWritesPerSec)
	store := session.NewStore(cache, remote, outbox, log)

	ai := reasoning.NewClient(cfg.ReasoningBaseURL, time.Duration(cfg.ReasoningTimeoutSec)*time.Second)
	eng := engine.New(store, ai, cfg.ArtifactsDir, log)

	fmt.Println("JurisLink — type a message, or /help for commands.")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		runCommand(eng, store, log, line)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := outbox.Close(closeCtx); err != nil {
		log.Warn("outbox drain incomplete", zap.Error(err))
	}
}

func runCommand(eng *engine.Engine, store *session.Store, log *zap.Logger, line string) {
	ctx := context.Background()

	switch cmd, rest, _ := strings.Cut(line, " "); cmd {
	case "/help":
		fmt.Println("/new            start a fresh conversation")
		fmt.Println("/list           list saved sessions")
		fmt.Println("/open <id>      open a session")
		fmt.Println("/rename <id> <title>")
		fmt.Println("/delete <id>")
		fmt.Println("/clear          delete all history")
		fmt.Println("/quit")

	case "/new":
		eng.NewConversation()
		fmt.Println("New conversation started.")

	case "/list":
		entries, err := store.List(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No recent chats.")
			return
		}
		for _, g := range session.GroupByAge(entries, time.Now()) {
			fmt.Printf("%s\n", g.Label)
			for _, e := range g.Entries {
				fmt.Printf("  %s  %s\n", e.ID, e.Title)
			}
		}

	case "/open":
		s, err := eng.LoadSession(ctx, strings.TrimSpace(rest))
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("Opened %q (%d messages)\n", s.Title, len(s.Messages))
		for _, m := range s.Messages {
			printMessage(ctx, m, true)
		}

	case "/rename":
		id, title, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if id == "" || strings.TrimSpace(title) == "" {
			fmt.Println("usage: /rename <id> <title>")
			return
		}
		if _, err := store.Rename(ctx, id, strings.TrimSpace(title)); err != nil {
			fmt.Println("error:", err)
		}

	case "/delete":
		if _, err := store.Delete(ctx, strings.TrimSpace(rest)); err != nil {
			fmt.Println("error:", err)
		}

	case "/clear":
		if err := store.Clear(ctx); err != nil {
			fmt.Println("error:", err)
		}
		eng.NewConversation()

	default:
		send(ctx, eng, log, line)
	}
}

// send runs the exchange in the background so Ctrl-C can stop generation
// without killing the process.
func send(ctx context.Context, eng *engine.Engine, log *zap.Logger, text string) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	type outcome struct {
		res *engine.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.Send(ctx, text)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-sigCh:
		eng.Stop()
		out = <-done
	}

	if out.err != nil {
		msgs := eng.Messages()
		if n := len(msgs); n > 0 && msgs[n-1].IsError {
			printMessage(ctx, msgs[n-1], true)
		} else {
			fmt.Println("error:", out.err)
		}
		return
	}

	switch out.res.Outcome {
	case engine.OutcomeDiscarded:
		// Conversation changed mid-flight; nothing to show.
	case engine.OutcomeStopped:
		printMessage(ctx, out.res.Reply, true)
	default:
		printMessage(ctx, out.res.Reply, false)
		if out.res.Reply.DocURL != "" {
			fmt.Println("Document saved:", out.res.Reply.DocURL)
		}
	}
}

func printMessage(ctx context.Context, m session.Message, final bool) {
	prefix := "  "
	if m.Role == session.RoleUser {
		prefix = "you: "
	}
	fmt.Print(prefix)

	shown := 0
	for p := range reveal.Stream(ctx, m.Content, final, reveal.Options{}) {
		fmt.Print(p[shown:])
		shown = len(p)
	}
	fmt.Println()
}
