package wall_nav

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DriveLogHeader is the column layout of a drive log.
var DriveLogHeader = []string{
	"timestamp", // seconds since controller start
	"steering",
	"throttle",
	"sensor_l",
	"sensor_fl",
	"sensor_c",
	"sensor_fr",
	"sensor_r",
	"state",
}

// NewRunID returns a fresh identifier for one drive session.
func NewRunID() string {
	return uuid.NewString()
}

// CSVRecorder appends one row per control cycle. Rows are buffered and
// flushed every FlushEvery records, so the control loop never waits on disk
// for more than one flush.
type CSVRecorder struct {
	mu         sync.Mutex
	csv        *csv.Writer
	closer     io.Closer
	path       string
	flushEvery int
	rows       uint64
}

// NewCSVRecorder writes the header to w and returns a recorder over it.
func NewCSVRecorder(w io.Writer, flushEvery int) (*CSVRecorder, error) {
	if flushEvery <= 0 {
		flushEvery = 10
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(DriveLogHeader); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	return &CSVRecorder{csv: cw, flushEvery: flushEvery}, nil
}

// OpenCSVRecorder creates driving_log_<time>_<run>.csv under cfg.Dir.
func OpenCSVRecorder(cfg RecorderConfig, runID string, now time.Time) (*CSVRecorder, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(cfg.Dir, fmt.Sprintf("driving_log_%s_%s.csv", now.Format("20060102_150405"), short))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}
	rec, err := NewCSVRecorder(f, cfg.FlushEvery)
	if err != nil {
		f.Close()
		return nil, err
	}
	rec.closer = f
	rec.path = path
	return rec, nil
}

// Record appends one cycle. Write errors surface on Close.
func (r *CSVRecorder) Record(rec CycleRecord) {
	s := rec.Snapshot
	row := []string{
		strconv.FormatFloat(rec.T, 'f', 3, 64),
		strconv.FormatFloat(rec.Steering, 'f', 3, 64),
		strconv.FormatFloat(rec.Throttle, 'f', 3, 64),
		strconv.FormatFloat(s.Left, 'f', 0, 64),
		strconv.FormatFloat(s.FrontLeft, 'f', 0, 64),
		strconv.FormatFloat(s.Center, 'f', 0, 64),
		strconv.FormatFloat(s.FrontRight, 'f', 0, 64),
		strconv.FormatFloat(s.Right, 'f', 0, 64),
		rec.RegimeName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.csv.Write(row)
	r.rows++
	if r.rows%uint64(r.flushEvery) == 0 {
		r.csv.Flush()
	}
}

// Rows returns the number of data rows written (excludes header).
func (r *CSVRecorder) Rows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Path returns the backing file path, empty for writer-backed recorders.
func (r *CSVRecorder) Path() string {
	return r.path
}

// Close flushes buffered rows and closes the file, if any.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.csv.Flush()
	err := r.csv.Error()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
		r.closer = nil
	}
	return err
}
