// powerctl is the control CLI for powerhintd.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"powerhintd/internal/config"
	"powerhintd/internal/ipc"
	"powerhintd/internal/journal"
	"powerhintd/internal/power"
	"powerhintd/internal/sysprop"
)

// Version is set at build time via -ldflags.
var Version = "1.0.0"

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "dump":
		cmdDump()
	case "hint":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: powerctl hint <kind> <data>")
			os.Exit(1)
		}
		cmdHint(flag.Arg(1), flag.Arg(2))
	case "prop":
		cmdProp(flag.Args()[1:])
	case "journal":
		cmdJournal(flag.Args()[1:])
	case "version":
		fmt.Printf("powerctl %s\n", Version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `powerctl - Control utility for powerhintd

Usage: powerctl [options] <command> [args]

Commands:
  status                   Show daemon status
  dump                     Print the daemon's diagnostic dump
  hint <kind> <data>       Send a power hint event to the daemon
  prop get <key>           Read a system property
  prop set <key> <value>   Write a system property
  prop unset <key>         Remove a system property
  prop list                List all system properties
  prop wait <key> <value>  Block until a property reaches a value
  journal [-n count]       Show recently issued hint directives
  version                  Print the powerctl version
  help                     Show this help message

Options:
  -config <path>  Path to config file (default: searched in standard locations)`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func clientConfig(cfg *config.Config) ipc.ClientConfig {
	ccfg := ipc.DefaultClientConfig(cfg.Daemon.RuntimeDir)
	if cfg.IPC.SocketPath != "" {
		ccfg.SocketPath = cfg.IPC.SocketPath
	}
	if cfg.IPC.TimeoutSec > 0 {
		ccfg.RequestTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
	}
	return ccfg
}

// dial connects to the daemon or exits with a diagnostic.
func dial(cfg *config.Config) *ipc.Client {
	client, err := ipc.Dial(clientConfig(cfg))
	if err != nil {
		if errors.Is(err, ipc.ErrDaemonNotRunning) {
			fmt.Fprintln(os.Stderr, "powerhintd is not running")
		} else {
			fmt.Fprintf(os.Stderr, "Error connecting to daemon: %v\n", err)
		}
		os.Exit(1)
	}
	return client
}

func cmdStatus() {
	cfg := loadConfig()

	fmt.Println("=== powerhintd Status ===")
	fmt.Println()

	client, err := ipc.Dial(clientConfig(cfg))
	if err != nil {
		if errors.Is(err, ipc.ErrDaemonNotRunning) {
			fmt.Println("Daemon: NOT RUNNING")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error connecting to daemon: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying status: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Daemon:   RUNNING (version %s)\n", st.Version)
	fmt.Printf("Started:  %s\n", st.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:   %s\n", st.Uptime.Round(time.Second))
	fmt.Printf("Ready:    %t\n", st.Ready)
	fmt.Println()

	fmt.Println("Governor:")
	fmt.Printf("  Current:  %s\n", st.Governor)
	fmt.Printf("  Eligible: %t\n", st.GovernorEligible)
	fmt.Println()

	fmt.Println("Engine:")
	fmt.Printf("  Running: %t\n", st.EngineRunning)
	fmt.Println()

	fmt.Println("Modes:")
	fmt.Printf("  VR:               %t\n", st.VRMode)
	fmt.Printf("  Sustained:        %t\n", st.SustainedMode)
	fmt.Printf("  Camera Streaming: %t\n", st.CameraStreaming)
}

func cmdDump() {
	cfg := loadConfig()

	client := dial(cfg)
	defer client.Close()

	text, err := client.Dump()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error requesting dump: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(text)
}

func cmdHint(kindArg, dataArg string) {
	kind, err := power.ParseEventKind(kindArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Known kinds:")
		for _, k := range power.EventKinds() {
			fmt.Fprintf(os.Stderr, "  %s\n", k)
		}
		os.Exit(1)
	}

	data, err := strconv.ParseInt(dataArg, 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid data value %q\n", dataArg)
		os.Exit(1)
	}

	cfg := loadConfig()

	client := dial(cfg)
	defer client.Close()

	if err := client.SendHint(string(kind), int32(data)); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending hint: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent %s %d\n", kind, data)
}

func cmdProp(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: powerctl prop <get|set|unset|list|wait> [args]")
		os.Exit(1)
	}

	cfg := loadConfig()

	props, err := sysprop.NewStore(cfg.Properties.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening property store: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "get":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: powerctl prop get <key>")
			os.Exit(1)
		}
		value, ok := props.Lookup(args[1])
		if !ok {
			os.Exit(1)
		}
		fmt.Println(value)
	case "set":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "Usage: powerctl prop set <key> <value>")
			os.Exit(1)
		}
		if err := props.Set(args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting property: %v\n", err)
			os.Exit(1)
		}
	case "unset":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: powerctl prop unset <key>")
			os.Exit(1)
		}
		if err := props.Unset(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error unsetting property: %v\n", err)
			os.Exit(1)
		}
	case "list":
		keys, err := props.Keys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing properties: %v\n", err)
			os.Exit(1)
		}
		for _, key := range keys {
			fmt.Printf("%s=%s\n", key, props.Get(key))
		}
	case "wait":
		cmdPropWait(props, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown prop subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdPropWait(props *sysprop.Store, args []string) {
	fs := flag.NewFlagSet("prop wait", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "give up after this long")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: powerctl prop wait [-timeout duration] <key> <value>")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := props.WaitFor(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "Error waiting for property: %v\n", err)
		os.Exit(1)
	}
}

func cmdJournal(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	count := fs.Int("n", 20, "number of entries to show")
	fs.Parse(args)

	cfg := loadConfig()

	j, err := journal.OpenReadOnly(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	entries, err := j.Recent(*count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No directives recorded.")
		return
	}

	fmt.Println("=== Hint Journal ===")
	fmt.Printf("%-20s %-22s %-18s %-10s %s\n", "Time", "Event", "Hint", "Action", "Duration")
	fmt.Println(strings.Repeat("-", 78))

	for _, e := range entries {
		dur := ""
		if e.Duration > 0 {
			dur = e.Duration.String()
		}
		fmt.Printf("%-20s %-22s %-18s %-10s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Event, e.Hint, e.Action, dur)
	}
}
