package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-scout/backend/internal/bootstrap"
	"github.com/zhouzirui/z-scout/backend/internal/config"
	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
)

// runner is the part of the agent the console drives.
type runner interface {
	Run(ctx context.Context, session chat.Session, prompt string, observe agent.StepObserver) (*agent.RunResult, error)
}

var exitWords = map[string]struct{}{"exit": {}, "quit": {}, "bye": {}}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	rt, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize agent: %v", err)
	}
	defer rt.Close()

	fmt.Println(rt.Agent.Graph().String())

	session := chat.NewSession(os.Getenv("CHAT_ACTOR_ID"), os.Getenv("CHAT_THREAD_ID"))
	runConsole(ctx, os.Stdin, os.Stdout, rt.Agent, session)
}

// runConsole reads one query per line until an exit word, EOF or ctx is
// done. Lines are scanned on a separate goroutine so a cancelled ctx ends the
// loop even while the reader blocks. Failed turns are printed and the loop
// goes on.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, r runner, session chat.Session) {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "User: ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nGoodbye!")
			return
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(out)
				return
			}
		}

		input := strings.TrimSpace(line)
		if input == "" {
			fmt.Fprintln(out, "Please enter a question.")
			continue
		}
		if _, ok := exitWords[strings.ToLower(input)]; ok {
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		result, err := r.Run(ctx, session, input, func(step agent.Step) {
			fmt.Fprintln(out, agent.FormatStep(step))
		})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", result.Answer)
	}
}
