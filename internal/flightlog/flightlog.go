// Package flightlog persists one record per controller poll iteration.
// Sinks are append-only; a failed write must never abort a move, so callers
// log write errors and continue.
package flightlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aerobench/flightpath/model"
)

// Record is one row of the flight log: which pattern was driving the
// vehicle, when the row was written, and the telemetry snapshot observed
// after the command was issued. Note fields are populated only when the
// caller runs in note mode.
type Record struct {
	Pattern   string
	Time      time.Time
	Telemetry model.Position

	// Note mode fields.
	Note      string    // e.g. "send_abs_pos", "hover"; empty when note mode is off
	Iteration int       // poll iteration within the current move
	Start     []float64 // requested start x,y,z
	Target    []float64 // requested target x,y,z

	// Extra carries free-form annotations (battery, temperature,
	// calibration factors) for lifecycle rows.
	Extra []string
}

// Sink receives ordered flight log records.
type Sink interface {
	Write(rec Record) error
	Close() error
}

// Discard returns a sink that drops every record. Used when persistence is
// disabled; controller behaviour is otherwise unchanged.
func Discard() Sink { return discard{} }

type discard struct{}

func (discard) Write(Record) error { return nil }
func (discard) Close() error       { return nil }

// CSV writes records as comma-separated rows, one per poll iteration,
// flushing after every row so an aborted flight still leaves usable data.
type CSV struct {
	w       *csv.Writer
	closer  io.Closer
	session string
}

// NewCSV wraps an open writer. The session ID is stamped on every row.
func NewCSV(w io.Writer) *CSV {
	c := &CSV{w: csv.NewWriter(w), session: uuid.NewString()}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// CreateCSVFile opens a timestamped datafile <root><MMDDYYYY_HHMMSS>.csv in
// dir and writes the header row. The returned path is the created file.
func CreateCSVFile(dir, root string, now time.Time) (*CSV, string, error) {
	name := fmt.Sprintf("%s%02d%02d%04d_%02d%02d%02d.csv",
		root, now.Month(), now.Day(), now.Year(),
		now.Hour(), now.Minute(), now.Second())
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create flight log: %w", err)
	}
	c := NewCSV(f)
	if err := c.w.Write([]string{"Vehicle Location vs Time", c.session, now.Format(time.RFC3339)}); err != nil {
		f.Close()
		return nil, "", err
	}
	c.w.Flush()
	return c, path, c.w.Error()
}

// Session returns the per-flight session ID stamped on rows.
func (c *CSV) Session() string { return c.session }

// Write appends one record and flushes.
func (c *CSV) Write(rec Record) error {
	row := []string{
		rec.Pattern,
		rec.Time.Format("01/02/2006 15:04:05.000000"),
		rec.Telemetry.Time.Format(time.RFC3339Nano),
		formatFloat(rec.Telemetry.X),
		formatFloat(rec.Telemetry.Y),
		formatFloat(rec.Telemetry.Z),
	}
	if rec.Note != "" {
		row = append(row, "Notes -- "+rec.Note, strconv.Itoa(rec.Iteration))
		row = append(row, formatFloats(rec.Start)...)
		row = append(row, formatFloats(rec.Target)...)
	}
	row = append(row, rec.Extra...)
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes buffered rows and closes the underlying file, if any.
func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloats(vs []float64) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, formatFloat(v))
	}
	return out
}
