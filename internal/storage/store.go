package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/dynfit/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	fitFile      = "fit.json"
	traceFile    = "trace.csv"

	KindRun = "run"
	KindFit = "fit"
)

var ErrNoResults = errors.New("storage: simulation has no results")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Number is a float64 that survives JSON when infinite or NaN.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

func numbers(m map[string]float64) map[string]Number {
	out := make(map[string]Number, len(m))
	for k, v := range m {
		out[k] = Number(v)
	}
	return out
}

// Floats converts back to plain values.
func Floats(m map[string]Number) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = float64(v)
	}
	return out
}

type RunMetadata struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Model     string            `json:"model"`
	Timestamp time.Time         `json:"timestamp"`
	Start     float64           `json:"start"`
	End       float64           `json:"end"`
	Method    string            `json:"method,omitempty"`
	Points    int               `json:"points"`
	Columns   []string          `json:"columns,omitempty"`
	Values    map[string]Number `json:"values"`
	Metrics   map[string]Number `json:"metrics,omitempty"`
}

func newID(model string) string {
	return fmt.Sprintf("%s_%s", model, uuid.NewString()[:8])
}

// Save writes the last run of s as metadata.json and states.csv under a
// new run directory and returns its ID.
func (s *Store) Save(model, method string, sm *sim.Simulation, metrics map[string]float64) (string, error) {
	res := sm.Results()
	if res == nil {
		return "", ErrNoResults
	}
	start, end, _ := sm.Span()

	runID := newID(model)
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Kind:      KindRun,
		Model:     model,
		Timestamp: time.Now(),
		Start:     start,
		End:       end,
		Method:    method,
		Points:    len(res.T),
		Columns:   append([]string{"t"}, res.Names...),
		Values:    numbers(sm.Snapshot()),
		Metrics:   numbers(metrics),
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteStatesCSV(f, res); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteStatesCSV writes one row per output time with a named column per
// series.
func WriteStatesCSV(w io.Writer, res *sim.Results) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"t"}, res.Names...)); err != nil {
		return err
	}
	for i, t := range res.T {
		row := make([]string, 0, len(res.Names)+1)
		row = append(row, formatFloat(t))
		for _, name := range res.Names {
			row = append(row, formatFloat(res.Values[name][i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// List returns every stored run and fit, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// States is a stored trajectory.
type States struct {
	Columns []string
	T       []float64
	// Rows holds every column except t, one row per time.
	Rows [][]float64
}

// Series returns one named column.
func (st *States) Series(name string) ([]float64, bool) {
	if name == "t" {
		return st.T, true
	}
	for j, c := range st.Columns[1:] {
		if c != name {
			continue
		}
		out := make([]float64, len(st.Rows))
		for i, row := range st.Rows {
			out[i] = row[j]
		}
		return out, true
	}
	return nil, false
}

func (s *Store) LoadStates(runID string) (*States, error) {
	header, rows, err := readCSV(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	st := &States{Columns: header, T: make([]float64, 0, len(rows))}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		st.T = append(st.T, row[0])
		st.Rows = append(st.Rows, row[1:])
	}
	return st, nil
}

func readCSV(path string) ([]string, [][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("storage: %s is empty", path)
	}

	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s line %d: %w", path, i+2, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return records[0], rows, nil
}
