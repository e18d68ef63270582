// Package csvlog appends control-loop telemetry to daily-rotated CSV files named
// fanctl-YYYY-MM-DD.csv. The columns are:
//
//	Timestamp,<sensor> Temp (°C)...,Control Temp (°C),Fan Speed (%),Fan PWM,CPU Usage (%)
//
// Values that were unavailable for a record are left empty. Every file of a day has a
// single header; when a record's columns differ from the header of the day's file
// (another sensor list, or a manual run without samples) the rows go to the next
// fanctl-YYYY-MM-DD-N.csv instead.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mikesmitty/fanctl/pkg/telemetry"
	"github.com/spf13/afero"
)

const (
	filePrefix = "fanctl-"
	timeLayout = "2006-01-02 15:04:05"
	fileLayout = "2006-01-02"

	timestampColumn = "Timestamp"
	tempSuffix      = " Temp (°C)"
)

var trailingColumns = []string{"Control Temp (°C)", "Fan Speed (%)", "Fan PWM", "CPU Usage (%)"}

type Writer struct {
	fs        afero.Fs
	dir       string
	delimiter rune

	current   afero.File
	writer    *csv.Writer
	curDate   string
	curHeader []string
}

// Row is one parsed line of a CSV log file. An empty cell leaves the matching Has*
// flag unset or the sensor out of Temps.
type Row struct {
	Time         time.Time
	Temps        map[string]float64
	ControlTemp  float64
	HasControl   bool
	SpeedPercent float64
	SpeedRaw     int
	CPUUsage     float64
	HasCPU       bool
}

// New creates the log directory if needed.
func New(fs afero.Fs, dir string, delimiter rune) (*Writer, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create csv dir: %w", err)
	}
	return &Writer{fs: fs, dir: dir, delimiter: delimiter}, nil
}

func (w *Writer) Emit(r telemetry.Record) error {
	dateStr := r.Time.Format(fileLayout)
	cols := header(r)

	if w.current == nil || w.curDate != dateStr || !slices.Equal(w.curHeader, cols) {
		w.Close()
		if err := w.open(dateStr, cols); err != nil {
			return err
		}
	}

	row := []string{r.Time.Format(timeLayout)}
	for _, s := range r.Samples {
		row = append(row, optional(s.Celsius, s.Available))
	}
	row = append(row,
		optional(r.ControlTemp, r.ControlValid),
		strconv.FormatFloat(r.SpeedPercent, 'f', 1, 64),
		strconv.Itoa(r.SpeedRaw),
		optional(r.CPUUsage, r.CPUValid),
	)
	w.writer.Write(row)
	w.writer.Flush()
	return w.writer.Error()
}

// open picks the first file of the day that is empty or already carries cols as its
// header, and appends to it.
func (w *Writer) open(dateStr string, cols []string) error {
	for n := 0; ; n++ {
		path := filepath.Join(w.dir, fileName(dateStr, n))
		existing, err := readHeader(w.fs, path, w.delimiter)
		if err != nil {
			return err
		}
		if existing != nil && !slices.Equal(existing, cols) {
			continue
		}

		f, err := w.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		w.current = f
		w.writer = csv.NewWriter(f)
		w.writer.Comma = w.delimiter
		w.curDate = dateStr
		w.curHeader = cols

		if existing == nil {
			w.writer.Write(cols)
		}
		slog.Debug("writing csv log", "path", path, "module", "csvlog")
		return nil
	}
}

// Close flushes and closes the current file.
func (w *Writer) Close() {
	if w.writer != nil {
		w.writer.Flush()
	}
	if w.current != nil {
		w.current.Close()
		w.current = nil
	}
}

func fileName(dateStr string, n int) string {
	if n == 0 {
		return filePrefix + dateStr + ".csv"
	}
	return fmt.Sprintf("%s%s-%d.csv", filePrefix, dateStr, n)
}

// readHeader returns nil for a missing or empty file.
func readHeader(fs afero.Fs, path string, delimiter rune) ([]string, error) {
	f, err := fs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	cols, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cols, nil
}

func header(r telemetry.Record) []string {
	cols := []string{timestampColumn}
	for _, s := range r.Samples {
		cols = append(cols, s.Source+tempSuffix)
	}
	return append(cols, trailingColumns...)
}

func optional(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Files lists the logs written on day, oldest first.
func Files(fs afero.Fs, dir string, day time.Time) ([]string, error) {
	dateStr := day.Format(fileLayout)
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	type file struct {
		path string
		n    int
	}
	var files []file
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix+dateStr) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix+dateStr), ".csv")
		n := 0
		if rest != "" {
			n, err = strconv.Atoi(strings.TrimPrefix(rest, "-"))
			if err != nil || !strings.HasPrefix(rest, "-") || n < 1 {
				continue
			}
		}
		files = append(files, file{path: filepath.Join(dir, name), n: n})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

// LoadFile reads every row of a CSV log written with the given delimiter.
func LoadFile(fs afero.Fs, path string, delimiter rune) ([]Row, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) < 1+len(trailingColumns) || records[0][0] != timestampColumn {
		return nil, fmt.Errorf("%s: missing header", path)
	}

	cols := records[0]
	sensors := make([]string, 0, len(cols)-1-len(trailingColumns))
	for _, c := range cols[1 : len(cols)-len(trailingColumns)] {
		sensors = append(sensors, strings.TrimSuffix(c, tempSuffix))
	}

	var rows []Row
	for _, rec := range records[1:] {
		t, err := time.ParseInLocation(timeLayout, rec[0], time.Local)
		if err != nil {
			continue
		}
		row := Row{Time: t, Temps: make(map[string]float64)}
		for i, name := range sensors {
			if v, err := strconv.ParseFloat(rec[i+1], 64); err == nil {
				row.Temps[name] = v
			}
		}
		tail := rec[len(rec)-len(trailingColumns):]
		if v, err := strconv.ParseFloat(tail[0], 64); err == nil {
			row.ControlTemp, row.HasControl = v, true
		}
		row.SpeedPercent, _ = strconv.ParseFloat(tail[1], 64)
		row.SpeedRaw, _ = strconv.Atoi(tail[2])
		if v, err := strconv.ParseFloat(tail[3], 64); err == nil {
			row.CPUUsage, row.HasCPU = v, true
		}
		rows = append(rows, row)
	}
	return rows, nil
}
