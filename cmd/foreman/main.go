package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/foreman/internal/build"
	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/providers"
	"github.com/ChamsBouzaiene/foreman/internal/sandbox"
	"github.com/ChamsBouzaiene/foreman/internal/state"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
	"github.com/ChamsBouzaiene/foreman/internal/toolexec"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("foreman", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Project directory (default: current directory)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}

	debug := os.Getenv("FOREMAN_DEBUG") != ""
	if debug {
		log.Printf("🐛 debug mode on")
	}

	root, err := resolveRoot(*dirFlag)
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	setup, err := providers.NewSetupFromEnv()
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := state.NewStore(root)
	store.Load()

	in := bufio.NewReader(os.Stdin)
	resume, ok := chooseAction(in, store.Exists())
	if !ok {
		fmt.Println("Nothing to do.")
		return 0
	}

	instruction := askLine(in, instructionPrompt(resume))
	if instruction == "" {
		fmt.Println("No instruction given, stopping.")
		return 0
	}
	if !confirm(in, "Start the build? [y/N] ") {
		fmt.Println("Build declined.")
		return 0
	}

	index, err := symbols.Open(ctx, root)
	if err != nil {
		log.Printf("⚠️ symbol index unavailable, continuing without invalidation: %v", err)
		index = nil
	} else {
		defer index.Close()
		if n, err := index.Reindex(ctx); err != nil {
			log.Printf("⚠️ initial reindex failed: %v", err)
		} else if n > 0 {
			log.Printf("🔎 indexed %d files", n)
		}
		go func() {
			if err := index.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Printf("⚠️ file watcher stopped: %v", err)
			}
		}()
	}

	exec, err := toolexec.New(root, index, store, sandbox.NewDefaultRunner())
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	hook := engine.LogHook{Verbose: debug}
	invoker := engine.NewInvoker(setup.Pool, setup.Tiers, hook)
	loop := engine.NewLoop(invoker, exec, hook)
	agents := build.NewLoopAgents(loop, providers.RoleModel)
	controller := build.NewController(root, store, index, agents, stdinPrompter{in: in})

	if err := controller.Run(ctx, instruction, resume); err != nil {
		if debug {
			log.Printf("❌ build failed: %+v", err)
		} else {
			log.Printf("❌ build failed: %v", err)
		}
		return 1
	}
	return 0
}

func resolveRoot(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("cannot create project directory: %w", err)
	}
	return abs, nil
}

// chooseAction picks between creating a new project and resuming the one
// recorded on disk. The second return is false when the user backs out.
func chooseAction(in *bufio.Reader, existing bool) (resume, ok bool) {
	if !existing {
		return false, true
	}
	for {
		answer := askLine(in, "Found an existing project. [r]esume, [c]reate fresh, or [q]uit? ")
		switch strings.ToLower(answer) {
		case "", "r", "resume":
			return true, true
		case "c", "create":
			return false, true
		case "q", "quit":
			return false, false
		}
	}
}

func instructionPrompt(resume bool) string {
	if resume {
		return "What should change or continue? > "
	}
	return "What should be built? > "
}

func confirm(in *bufio.Reader, prompt string) bool {
	answer := strings.ToLower(askLine(in, prompt))
	return answer == "y" || answer == "yes"
}

func askLine(in *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(line)
}

// stdinPrompter answers the controller's clarification questions from the
// terminal.
type stdinPrompter struct {
	in *bufio.Reader
}

func (p stdinPrompter) Ask(question string) string {
	return askLine(p.in, question+" > ")
}
