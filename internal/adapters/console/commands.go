package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
)

// ErrQuit is returned by Run when the operator asks to quit.
var ErrQuit = errors.New("console: quit requested")

// Controller is what console commands act on.
type Controller interface {
	SetDetail(on bool)
	Detail() bool
	Interrogate(ctx context.Context) error
	TestFrame(ctx context.Context) error
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// ActionKind enumerates console actions.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionToggleDetail
	ActionInterrogate
	ActionTestFrame
	ActionCommand
	ActionHelp
	ActionQuit
)

// Action is a parsed console line.
type Action struct {
	Kind    ActionKind
	Command domain.Command
}

const help = `commands:
  d                        toggle per-IOA detail
  gi                       station interrogation
  t                        test frame
  sc <ioa> <0|1> [s]       single command, s = select
  se <ioa> <value> [s]     scaled set-point, s = select
  h                        this help
  q                        quit
`

// ParseLine parses one console line. Blank lines parse to ActionNone.
func ParseLine(line string) (Action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Action{Kind: ActionNone}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "d":
		return Action{Kind: ActionToggleDetail}, nil
	case "gi":
		return Action{Kind: ActionInterrogate}, nil
	case "t":
		return Action{Kind: ActionTestFrame}, nil
	case "h", "help", "?":
		return Action{Kind: ActionHelp}, nil
	case "q", "quit", "exit":
		return Action{Kind: ActionQuit}, nil
	case "sc":
		return parseCommand(domain.CommandSingle, fields[1:])
	case "se":
		return parseCommand(domain.CommandSetpointScaled, fields[1:])
	default:
		return Action{}, fmt.Errorf("unknown command %q, type h for help", fields[0])
	}
}

func parseCommand(kind domain.CommandKind, args []string) (Action, error) {
	if len(args) < 2 || len(args) > 3 {
		return Action{}, fmt.Errorf("usage: %s <ioa> <value> [s]", kindVerb(kind))
	}
	ioa, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return Action{}, fmt.Errorf("invalid ioa %q", args[0])
	}
	value, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return Action{}, fmt.Errorf("invalid value %q", args[1])
	}

	cmd := domain.Command{Kind: kind, IOA: uint32(ioa), Value: int32(value)}
	if len(args) == 3 {
		if !strings.EqualFold(args[2], "s") {
			return Action{}, fmt.Errorf("unexpected argument %q, only s is accepted", args[2])
		}
		cmd.Select = true
	}
	if err := cmd.Validate(); err != nil {
		return Action{}, err
	}
	return Action{Kind: ActionCommand, Command: cmd}, nil
}

func kindVerb(kind domain.CommandKind) string {
	if kind == domain.CommandSingle {
		return "sc"
	}
	return "se"
}

// Commands reads operator lines and applies them to a Controller.
type Commands struct {
	ctrl   Controller
	out    io.Writer
	logger ports.Logger
}

// NewCommands creates a command reader writing replies to out.
func NewCommands(ctrl Controller, out io.Writer, logger ports.Logger) *Commands {
	return &Commands{ctrl: ctrl, out: out, logger: logger}
}

// Run reads lines from in until EOF, ctx ends or a quit command. It returns
// ErrQuit for quit and nil otherwise.
func (c *Commands) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				c.logger.Warn("console input failed", ports.Err(err))
			}
			return nil
		case line := <-lines:
			if c.Execute(ctx, line) {
				return ErrQuit
			}
		}
	}
}

// Execute applies one line and reports whether it was a quit command.
// Errors are written to the output, never returned.
func (c *Commands) Execute(ctx context.Context, line string) bool {
	action, err := ParseLine(line)
	if err != nil {
		c.printf("error: %v\n", err)
		return false
	}

	switch action.Kind {
	case ActionToggleDetail:
		on := !c.ctrl.Detail()
		c.ctrl.SetDetail(on)
		c.printf("detail %s\n", onOff(on))
	case ActionInterrogate:
		c.report("station interrogation", c.ctrl.Interrogate(ctx))
	case ActionTestFrame:
		c.report("test frame", c.ctrl.TestFrame(ctx))
	case ActionCommand:
		cmd := action.Command
		c.report(fmt.Sprintf("%s command ioa=%d value=%d select=%t", cmd.Kind, cmd.IOA, cmd.Value, cmd.Select),
			c.ctrl.Dispatch(ctx, cmd))
	case ActionHelp:
		c.printf("%s", help)
	case ActionQuit:
		return true
	}
	return false
}

func (c *Commands) report(what string, err error) {
	if err != nil {
		c.printf("%s failed: %v\n", what, err)
		return
	}
	c.printf("%s sent\n", what)
}

func (c *Commands) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Debug("console write failed", ports.Err(err))
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
