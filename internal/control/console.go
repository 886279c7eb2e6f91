package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"github.com/muurk/mbproxy/internal/ui"
)

// Prompt is printed before each command when input is a terminal.
const Prompt = "MITM> "

// Console is the line-driven interactive control loop.
type Console struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer
	printer    *ui.Printer
	prompt     bool
}

// NewConsole reads commands from in and writes styled replies to out. The
// prompt is only shown when in is a terminal.
func NewConsole(d *Dispatcher, in io.Reader, out io.Writer) *Console {
	return &Console{
		dispatcher: d,
		in:         in,
		out:        out,
		printer:    ui.NewPrinter(out),
		prompt:     isTerminal(in),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run prints the command list and executes commands until quit, end of
// input or ctx cancellation. It returns nil after quit, io.EOF when input
// ends and ctx.Err() when cancelled.
func (c *Console) Run(ctx context.Context) error {
	c.printHelp("Modbus MITM - Interactive Control")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		if c.prompt {
			c.printer.Print("\n" + Prompt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.handle(line); quit {
				return nil
			}
		}
	}
}

// handle runs one line and reports whether the console should exit.
func (c *Console) handle(line string) bool {
	res, err := c.dispatcher.Execute(line)
	if err != nil {
		c.printer.Fail(err.Error())
		return false
	}

	switch {
	case res.Command == "":
		return false
	case res.Help:
		c.printHelp("Commands")
	case res.Command == "status":
		c.printer.Println(RenderStatus(*res.Status, c.printer.Width()))
	case res.Quit:
		c.printer.Note(res.Message)
		return true
	default:
		c.printer.OK(res.Message)
		if res.Status != nil {
			c.printer.Note("   Mode: " + ui.RenderModeBadge(res.Status.Mode))
		}
	}
	return false
}

func (c *Console) printHelp(title string) {
	params := make([]ui.Field, 0, len(Commands))
	for _, cmd := range Commands {
		params = append(params, ui.Field{Key: cmd.Usage, Value: cmd.Help})
	}
	c.printer.PrintHeader(title, "", params)
}

// RenderStatus renders st as a header box, with a progress bar while
// replaying.
func RenderStatus(st Status, width int) string {
	params := []ui.Field{
		{Key: "Mode", Value: ui.RenderModeBadge(st.Mode)},
		{Key: "Record file", Value: st.RecordFile},
		{Key: "Loop", Value: strconv.FormatBool(st.Loop)},
		{Key: "Samples recorded", Value: strconv.Itoa(st.RecordedSamples)},
		{Key: "Samples loaded", Value: strconv.Itoa(st.LoadedSamples)},
		{Key: "Sessions", Value: fmt.Sprintf("%d active, %d total", st.Relay.SessionsActive, st.Relay.SessionsTotal)},
		{Key: "Responses", Value: fmt.Sprintf("%d seen, %d recorded, %d replaced", st.Relay.Responses, st.Relay.Recorded, st.Relay.Replaced)},
	}
	if st.ReplayLength > 0 {
		params = append(params, ui.Field{
			Key:   "Replay progress",
			Value: fmt.Sprintf("%d/%d", st.ReplayIndex, st.ReplayLength),
		})
	}

	out := ui.NewHeader("Status", "", params).SetWidth(width).Render()
	if st.ReplayLength > 0 {
		out += "\n" + ui.RenderProgress(st.ReplayIndex, st.ReplayLength, 30)
	}
	return out
}
