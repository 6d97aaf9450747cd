// Package atci implements the AT command interface used to inspect and tune
// the node configuration from a serial console or a remote command topic.
//
// Every command produces zero or more response lines followed by a final
// "OK" or "ERROR" line.
package atci

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response terminators.
const (
	OK    = "OK"
	Error = "ERROR"
)

// Parse errors.
var (
	ErrNotAT          = errors.New("atci: line does not start with AT")
	ErrUnknownCommand = errors.New("atci: unknown command")
	ErrSyntax         = errors.New("atci: syntax error")
	ErrNotSupported   = errors.New("atci: operation not supported")
)

// Target is the configuration surface the commands operate on.
type Target interface {
	Names() []string
	Format(name string) (string, error)
	Set(name string, v int64) error
	Persist() error
	Reset() error
}

type command struct {
	name   string
	help   string
	action func(w io.Writer) error
	set    func(w io.Writer, param string) error
}

// Interpreter parses and executes AT command lines against a Target.
// It is not safe for concurrent use; callers serialize Execute together with
// every other access to the target.
type Interpreter struct {
	target   Target
	commands []command
}

// New creates an interpreter with the standard command table.
func New(t Target) *Interpreter {
	i := &Interpreter{target: t}
	i.commands = []command{
		{name: "&F", help: "Restore configuration to factory defaults", action: i.factoryReset},
		{name: "&W", help: "Store configuration to non-volatile memory", action: i.store},
		{name: "$CONFIG", help: "Get/set config parameters", action: i.listConfig, set: i.setConfig},
		{name: "+CLAC", help: "List all available AT commands", action: i.listCommands},
		{name: "$HELP", help: "This help", action: i.help},
	}
	return i
}

// Execute runs one command line and writes the response, including the final
// OK or ERROR line, to w. The returned error explains an ERROR response.
func (i *Interpreter) Execute(w io.Writer, line string) error {
	err := i.execute(w, strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintln(w, Error)
		return err
	}
	fmt.Fprintln(w, OK)
	return nil
}

func (i *Interpreter) execute(w io.Writer, line string) error {
	if len(line) < 2 || !strings.EqualFold(line[:2], "AT") {
		return ErrNotAT
	}
	rest := line[2:]
	if rest == "" {
		return nil
	}

	name, param, hasSet := strings.Cut(rest, "=")
	query := false
	if !hasSet && strings.HasSuffix(name, "?") {
		name = strings.TrimSuffix(name, "?")
		query = true
	}

	cmd, ok := i.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	switch {
	case hasSet:
		if cmd.set == nil {
			return fmt.Errorf("%w: AT%s=", ErrNotSupported, cmd.name)
		}
		return cmd.set(w, param)
	case query && cmd.set == nil:
		return fmt.Errorf("%w: AT%s?", ErrNotSupported, cmd.name)
	default:
		return cmd.action(w)
	}
}

func (i *Interpreter) lookup(name string) (command, bool) {
	for _, c := range i.commands {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return command{}, false
}

func (i *Interpreter) listConfig(w io.Writer) error {
	for _, name := range i.target.Names() {
		v, err := i.target.Format(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "$CONFIG: %q,%s\n", name, v)
	}
	return nil
}

func (i *Interpreter) setConfig(_ io.Writer, param string) error {
	name, value, err := parseConfigParam(param)
	if err != nil {
		return err
	}
	return i.target.Set(name, value)
}

func (i *Interpreter) store(io.Writer) error {
	return i.target.Persist()
}

func (i *Interpreter) factoryReset(io.Writer) error {
	return i.target.Reset()
}

func (i *Interpreter) listCommands(w io.Writer) error {
	for _, c := range i.commands {
		fmt.Fprintf(w, "AT%s\n", c.name)
	}
	return nil
}

func (i *Interpreter) help(w io.Writer) error {
	for _, c := range i.commands {
		fmt.Fprintf(w, "AT%s %s\n", c.name, c.help)
	}
	return nil
}

// parseConfigParam splits `"Name",value`. The name is a double-quoted string
// without escapes and the value an unsigned 32-bit decimal.
func parseConfigParam(param string) (string, int64, error) {
	if !strings.HasPrefix(param, `"`) {
		return "", 0, fmt.Errorf("%w: expected quoted field name", ErrSyntax)
	}
	end := strings.IndexByte(param[1:], '"')
	if end < 0 {
		return "", 0, fmt.Errorf("%w: unterminated field name", ErrSyntax)
	}
	name := param[1 : end+1]
	rest := param[end+2:]

	if !strings.HasPrefix(rest, ",") {
		return "", 0, fmt.Errorf("%w: expected comma", ErrSyntax)
	}
	v, err := strconv.ParseUint(rest[1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: value: %v", ErrSyntax, err)
	}
	return name, int64(v), nil
}
