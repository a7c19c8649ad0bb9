package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"simpit/host/simpit"
	"simpit/protocol"
)

func consoleCmd() *cobra.Command {
	var opts hostOptions

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive command prompt",
		Long: `Connect to the device and read commands from standard input.
Logs are written to standard error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd, &opts, os.Stderr)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- e.host.Run(ctx) }()

			runConsole(e, os.Stdin, os.Stdout)
			cancel()
			return <-done
		},
	}

	opts.bind(cmd)

	return cmd
}

func runConsole(e *engine, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return

		case "help", "?":
			printHelp(out)

		case "state":
			fmt.Fprintf(out, "handshake: %s dispatching: %v\n", e.host.State(), e.host.Dispatching())

		case "status":
			fmt.Fprint(out, e.cache.Summary())

		default:
			if err := runCommand(e.host, parts); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "OK")
		}
	}
}

func runCommand(h *simpit.Host, parts []string) error {
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "echo":
		return h.SendEcho(strings.Join(args, " "))

	case "enable", "disable":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <channel|all>", cmd)
		}
		if cmd == "enable" && args[0] == "all" {
			return h.EnableAllChannels()
		}
		d, ok := protocol.ParseDatagram(args[0])
		if !ok {
			return fmt.Errorf("unknown channel %q", args[0])
		}
		if cmd == "enable" {
			return h.EnableChannel(d)
		}
		return h.DisableChannel(d)

	case "activate", "deactivate", "toggle":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <group|1-10>", cmd)
		}
		if index, err := strconv.Atoi(args[0]); err == nil {
			switch cmd {
			case "activate":
				return h.ActivateCustomActionGroup(index)
			case "deactivate":
				return h.DeactivateCustomActionGroup(index)
			default:
				return h.ToggleCustomActionGroup(index)
			}
		}
		g, ok := protocol.ParseActionGroup(args[0])
		if !ok {
			return fmt.Errorf("unknown action group %q", args[0])
		}
		switch cmd {
		case "activate":
			return h.ActivateStandardActionGroup(g)
		case "deactivate":
			return h.DeactivateStandardActionGroup(g)
		default:
			return h.ToggleStandardActionGroup(g)
		}

	case "throttle":
		if len(args) != 1 {
			return fmt.Errorf("usage: throttle <0-32767>")
		}
		v, err := strconv.ParseInt(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid throttle %q", args[0])
		}
		return h.SendThrottle(protocol.Throttle(v))

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help                  - Show this help message")
	fmt.Fprintln(out, "  state                 - Show handshake state")
	fmt.Fprintln(out, "  status                - Print cached telemetry")
	fmt.Fprintln(out, "  echo <text>           - Send an echo request")
	fmt.Fprintln(out, "  enable <channel|all>  - Subscribe to a channel")
	fmt.Fprintln(out, "  disable <channel>     - Unsubscribe from a channel")
	fmt.Fprintln(out, "  activate <group|n>    - Activate a standard or custom action group")
	fmt.Fprintln(out, "  deactivate <group|n>  - Deactivate an action group")
	fmt.Fprintln(out, "  toggle <group|n>      - Toggle an action group")
	fmt.Fprintln(out, "  throttle <value>      - Send a throttle command")
	fmt.Fprintln(out, "  quit/exit/q           - Exit the program")
	fmt.Fprintln(out)
}
