package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mbproxy/internal/replay"
	"github.com/muurk/mbproxy/internal/ui"
)

// maxShownRegisters caps how many register values a sample line shows.
const maxShownRegisters = 16

var inspectCmd = &cobra.Command{
	Use:   "inspect <recording.json>",
	Short: "Summarise a recording file",
	Long: `Load a recording and print its metadata together with the first and
last samples. The duration is an estimate derived from the sample count at
one sample per second.`,
	Example: `  mbproxy inspect recorded_values.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	p := ui.NewPrinter(cmd.OutOrStdout())

	rec, err := replay.Load(path)
	if err != nil {
		p.PrintError("Cannot read recording", err, loadTroubleshooting(err))
		return err
	}

	p.PrintHeader("Recording", "mbproxy inspect "+path, recordingFields(rec))

	if rec.Len() == 0 {
		p.PrintWarning("Recording has no samples", []ui.Field{
			{Key: "Hint", Value: "replay will be rejected until samples are recorded"},
		})
		return nil
	}

	first := rec.Samples[0]
	last := rec.Samples[rec.Len()-1]
	p.PrintSuccess(fmt.Sprintf("%d samples", rec.Len()), []ui.Field{
		{Key: "First", Value: formatSample(first)},
		{Key: "Last", Value: formatSample(last)},
		{Key: "Span", Value: last.CapturedAt.Sub(first.CapturedAt).Round(time.Millisecond).String()},
	})
	return nil
}

func recordingFields(rec *replay.Recording) []ui.Field {
	md := rec.Metadata
	fields := []ui.Field{
		{Key: "Recorded at", Value: md.RecordedAt.Format(time.RFC3339)},
		{Key: "Samples", Value: strconv.Itoa(md.SampleCount)},
		{Key: "Duration", Value: fmt.Sprintf("~%.0fs (estimated)", md.DurationSeconds)},
		{Key: "Description", Value: md.Description},
	}
	if rec.Len() > 0 {
		fields = append(fields, ui.Field{Key: "Registers", Value: strconv.Itoa(len(rec.Samples[0].Registers))})
	}
	return fields
}

func formatSample(s replay.Sample) string {
	regs := s.Registers
	more := ""
	if len(regs) > maxShownRegisters {
		more = fmt.Sprintf(" ... (+%d)", len(regs)-maxShownRegisters)
		regs = regs[:maxShownRegisters]
	}
	vals := make([]string, len(regs))
	for i, r := range regs {
		vals[i] = strconv.Itoa(int(r))
	}
	return fmt.Sprintf("%s [%s]%s", s.CapturedAt.Format("15:04:05.000"), strings.Join(vals, " "), more)
}

func loadTroubleshooting(err error) []string {
	switch {
	case errors.Is(err, replay.ErrNotFound):
		return []string{
			"Check the path, recordings default to recorded_values.json",
			"Record first: mbproxy serve --mode record",
		}
	case errors.Is(err, replay.ErrMalformed):
		return []string{
			"The file must be a JSON object with metadata and samples",
			"Each sample needs a registers array of integers 0-65535",
		}
	default:
		return []string{"Check file permissions"}
	}
}
