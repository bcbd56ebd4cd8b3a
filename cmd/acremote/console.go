package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/Gowrisankar10354/ac-remote-final/internal/history"
	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

const (
	consoleHealthTimeout = 5 * time.Second
	consoleTimeFormat    = "15:04:05"
	defaultHistoryRows   = 10
)

// linkControl is the part of link.Controller the console drives.
type linkControl interface {
	Connect()
	Disconnect()
	Publish(cmd any) error
	ForceDeviceOnlineConfirmation() error
	Status() link.Status
}

// historyReader reads recorded link events.
type historyReader interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]history.Entry, error)
}

// console is the interactive prompt for driving the link by hand.
type console struct {
	rl       *readline.Instance
	out      io.Writer
	deviceID string

	ctrl    linkControl
	history historyReader
	checks  []namedCheck
}

// newConsole creates the line editor. Commands are unavailable until attach.
func newConsole(cfg config.ConsoleConfig, deviceID string) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &console{
		rl:       rl,
		out:      rl.Stdout(),
		deviceID: deviceID,
	}, nil
}

// Stderr returns a writer that does not clobber the prompt.
func (c *console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// attach wires the controller and optional history and health checks.
func (c *console) attach(ctrl linkControl, reader historyReader, checks []namedCheck) {
	c.ctrl = ctrl
	c.history = reader
	c.checks = checks
}

// Run reads commands until exit, EOF or ctx is cancelled. Leaving the loop
// on the user's request cancels the application.
func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	// Closing the instance unblocks a pending Readline.
	stop := context.AfterFunc(ctx, func() { c.rl.Close() })
	defer stop()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.execute(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// execute runs one command line and reports whether the user asked to quit.
func (c *console) execute(line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "connect", "c":
		c.ctrl.Connect()

	case "disconnect", "d":
		c.ctrl.Disconnect()

	case "send", "s":
		c.cmdSend(strings.TrimSpace(input[len(parts[0]):]))

	case "confirm":
		if err := c.ctrl.ForceDeviceOnlineConfirmation(); err != nil {
			fmt.Fprintf(c.out, "confirm: %v\n", err)
		}

	case "status", "st":
		c.cmdStatus()

	case "history", "h":
		c.cmdHistory(args)

	case "health":
		c.cmdHealth()

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *console) cmdSend(raw string) {
	if raw == "" {
		fmt.Fprintln(c.out, `usage: send <json>   e.g. send {"power":"on","temp":22}`)
		return
	}
	if err := c.ctrl.Publish(json.RawMessage(raw)); err != nil {
		fmt.Fprintf(c.out, "send: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "sent")
}

func (c *console) cmdStatus() {
	s := c.ctrl.Status()
	fmt.Fprintf(c.out, "state:            %s\n", s.State)
	fmt.Fprintf(c.out, "broker connected: %t\n", s.BrokerConnected)
	fmt.Fprintf(c.out, "device confirmed: %t\n", s.DeviceConfirmed)
	fmt.Fprintf(c.out, "message:          %s\n", s.Message)
	if s.SessionID != "" {
		fmt.Fprintf(c.out, "session:          %s\n", s.SessionID)
	}
}

func (c *console) cmdHistory(args []string) {
	if c.history == nil {
		fmt.Fprintln(c.out, "history is disabled (database.enabled=false)")
		return
	}

	limit := defaultHistoryRows
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(c.out, "usage: history [n]")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), consoleHealthTimeout)
	defer cancel()

	entries, err := c.history.Recent(ctx, c.deviceID, limit)
	if err != nil {
		fmt.Fprintf(c.out, "history: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no link events recorded")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%s  %-32s %s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.State, e.Message)
	}
}

func (c *console) cmdHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), consoleHealthTimeout)
	defer cancel()

	for _, nc := range c.checks {
		if err := nc.check.HealthCheck(ctx); err != nil {
			fmt.Fprintf(c.out, "%-9s %v\n", nc.name+":", err)
			continue
		}
		fmt.Fprintf(c.out, "%-9s ok\n", nc.name+":")
	}
}

// printStatus shows a notification as it happens.
func (c *console) printStatus(s link.Status) {
	at := s.Time
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(c.out, "[%s] %s: %s\n", at.Local().Format(consoleTimeFormat), s.State, s.Message)
}

// printData shows a payload from the device's status topic.
func (c *console) printData(payload []byte) {
	fmt.Fprintf(c.out, "[%s] data: %s\n", time.Now().Format(consoleTimeFormat), payload)
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, `
AC Remote Commands:
  Link:
    connect            - Connect to the broker and wait for the device
    disconnect         - Disconnect from the broker
    confirm            - Mark the device online without a ready message
    send <json>        - Send a command to the device

  Inspection:
    status             - Show link status
    history [n]        - Show the last n link events (default 10)
    health             - Check broker, device and storage

  Other:
    help               - Show this help
    exit               - Quit`)
}
