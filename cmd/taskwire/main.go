package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.3-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

WATCH MODE (default):
  %s                          Start the interactive watch view
  %s -daemon                  Run the sync engine headless (no TUI)

SUBCOMMANDS:
  %s login [-email -password] Authenticate against the server
  %s signup                   Register a new organization
  %s logout                   Clear the local session
  %s whoami [-verify]         Show the current session
  %s tasks <action>           Manage tasks
                              Actions: list, show, create, start, done, rm
  %s stats                    Show the task dashboard counters
  %s users                    List organization members
  %s buckets                  List task buckets
  %s notifications <action>   Manage notifications
                              Actions: list, read, read-all, rm, clear
  %s orgs <action>            Admin: list organizations, impersonate, stop
  %s status                   Show client and server health

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  TASKWIRE_HOME           Data directory (default: ~/.taskwire)
  TASKWIRE_SERVER_URL     REST base URL of the backend
  TASKWIRE_NO_TUI         Set to 1 to disable the TUI (use with -daemon)

EXAMPLES:
  Interactive watch:      %s
  Headless sync:          %s -daemon
  List tasks:             %s tasks list
  Complete a task:        %s tasks done <id>
  Check server health:    %s status
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	loadDotEnv(".env")

	interactive := isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("TASKWIRE_NO_TUI") == ""
	daemon := flag.Bool("daemon", false, "run the sync engine headless (no TUI, logs to stdout)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println("taskwire", Version)
		return
	}
	if *daemon {
		interactive = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "login":
			os.Exit(runLoginCommand(ctx, args[1:]))
		case "signup":
			os.Exit(runSignupCommand(ctx, args[1:]))
		case "logout":
			os.Exit(runLogoutCommand(ctx, args[1:]))
		case "whoami":
			os.Exit(runWhoamiCommand(ctx, args[1:]))
		case "tasks":
			os.Exit(runTasksCommand(ctx, args[1:]))
		case "stats":
			os.Exit(runStatsCommand(ctx, args[1:]))
		case "users":
			os.Exit(runUsersCommand(ctx, args[1:]))
		case "buckets":
			os.Exit(runBucketsCommand(ctx, args[1:]))
		case "notifications", "inbox":
			os.Exit(runNotificationsCommand(ctx, args[1:]))
		case "orgs":
			os.Exit(runOrgsCommand(ctx, args[1:]))
		case "status":
			os.Exit(runStatusCommand(ctx, args[1:]))
		case "watch":
			// Falls through to watch mode below.
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	os.Exit(runWatch(ctx, interactive))
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"client","trace_id":"-","msg":"startup failure","reason_code":%q,"error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			reasonCode,
			message,
		)
	}
	os.Exit(1)
}

func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, val)
	}
}
