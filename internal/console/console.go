// Package console provides the interactive line console: AT commands,
// status output and simulated input events for bench testing.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sweeney/motion-detector/internal/logic"
)

// Backend is what the console operates on. Every function must be safe to
// call from the console goroutine.
type Backend struct {
	// Command executes one AT command line and returns the full response.
	Command func(line string) string
	// Status returns a rendered status snapshot.
	Status func() []byte
	// Inject delivers a simulated input event.
	Inject func(ev logic.Event) error
}

// Console reads commands from the terminal.
type Console struct {
	rl *readline.Instance
}

// New creates a console on the process terminal. It is created before the
// rest of the daemon so the logger can write through Stdout.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "motion> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log output so lines do not tear the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Run executes lines against b until EOF, "quit" or ctx is done. cancel is
// called when the user asks to exit.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, b Backend) {
	printHelp(c.rl.Stdout())

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
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if quit := Dispatch(c.rl.Stdout(), b, line); quit {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

// Dispatch executes one console line against b and writes the output to w.
// It reports whether the line asked to quit.
func Dispatch(w io.Writer, b Backend, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	if len(input) >= 2 && strings.EqualFold(input[:2], "AT") {
		fmt.Fprint(w, b.Command(input))
		return false
	}

	parts := strings.Fields(input)
	switch strings.ToLower(parts[0]) {
	case "help", "?":
		printHelp(w)

	case "status", "s":
		w.Write(b.Status())
		fmt.Fprintln(w)

	case "motion", "m":
		inject(w, b, logic.Motion{})

	case "click":
		inject(w, b, logic.Button{Kind: logic.ButtonClick})

	case "hold":
		inject(w, b, logic.Button{Kind: logic.ButtonHold})

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", parts[0])
	}
	return false
}

func inject(w io.Writer, b Backend, ev logic.Event) {
	if err := b.Inject(ev); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  AT...          AT command (AT$HELP lists them)
  status, s      Show node status
  motion, m      Simulate a PIR pulse
  click          Simulate a button click
  hold           Simulate a button hold
  help, ?        This help
  quit, q        Exit`)
}
