package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/dynfit/internal/mcmc"
)

// FitParam is one sampled name in fit.json.
type FitParam struct {
	Name    string     `json:"name"`
	Prior   mcmc.Prior `json:"prior"`
	Mean    Number     `json:"mean"`
	SD      Number     `json:"sd"`
	HPD95   [2]Number  `json:"hpd95"`
	MCError Number     `json:"mc_error"`
	ESS     Number     `json:"ess"`
	RHat    Number     `json:"rhat"`
	MAP     Number     `json:"map"`
}

type FitRecord struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Timestamp  time.Time     `json:"timestamp"`
	Iter       int           `json:"iter"`
	Burn       int           `json:"burn"`
	Thin       int           `json:"thin"`
	Seed       uint64        `json:"seed"`
	Samples    int           `json:"samples"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Acceptance []float64     `json:"acceptance"`
	Params     []FitParam    `json:"params"`
}

// SaveFit stores the posterior summary of m as fit.json and its combined
// trace as trace.csv.
func (s *Store) SaveFit(model string, m *mcmc.Model) (string, error) {
	info, err := m.Info()
	if err != nil {
		return "", err
	}
	summaries, err := m.Summaries()
	if err != nil {
		return "", err
	}
	mapValues, err := m.MAP()
	if err != nil {
		return "", err
	}
	chains, err := m.Chains()
	if err != nil {
		return "", err
	}
	best, err := m.Best()
	if err != nil {
		return "", err
	}

	id := newID(model)
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	now := time.Now()
	rec := FitRecord{
		ID:        id,
		Model:     model,
		Timestamp: now,
		Iter:      info.Iter,
		Burn:      info.Burn,
		Thin:      info.Thin,
		Seed:      info.Seed,
		Samples:   info.Samples,
		Elapsed:   info.Elapsed,
	}
	for _, ch := range chains {
		rec.Acceptance = append(rec.Acceptance, ch.Acceptance)
	}
	for _, sum := range summaries {
		prior, _ := m.Prior(sum.Name)
		rec.Params = append(rec.Params, FitParam{
			Name:    sum.Name,
			Prior:   prior,
			Mean:    Number(sum.Mean),
			SD:      Number(sum.SD),
			HPD95:   [2]Number{Number(sum.HPD95[0]), Number(sum.HPD95[1])},
			MCError: Number(sum.MCError),
			ESS:     Number(sum.ESS),
			RHat:    Number(sum.RHat),
			MAP:     Number(mapValues[sum.Name]),
		})
	}
	if err := writeJSON(filepath.Join(dir, fitFile), rec); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        id,
		Kind:      KindFit,
		Model:     model,
		Timestamp: now,
		Points:    info.Samples,
		Columns:   append(m.Names(), "log_post"),
		Values:    numbers(best),
	}
	if start, end, ok := m.Simulation().Span(); ok {
		meta.Start, meta.End = start, end
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}

	rows, logPost, err := m.Trace()
	if err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(dir, traceFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(meta.Columns); err != nil {
		return "", err
	}
	for k, row := range rows {
		record := make([]string, 0, len(row)+1)
		for _, v := range row {
			record = append(record, formatFloat(v))
		}
		record = append(record, formatFloat(logPost[k]))
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) LoadFit(id string) (*FitRecord, error) {
	var rec FitRecord
	if err := readJSON(filepath.Join(s.baseDir, id, fitFile), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadTrace returns the sampled names, one row per kept sample, and the
// log posterior of each row.
func (s *Store) LoadTrace(id string) ([]string, [][]float64, []float64, error) {
	header, rows, err := readCSV(filepath.Join(s.baseDir, id, traceFile))
	if err != nil {
		return nil, nil, nil, err
	}
	last := len(header) - 1
	logPost := make([]float64, len(rows))
	samples := make([][]float64, len(rows))
	for i, row := range rows {
		logPost[i] = row[last]
		samples[i] = row[:last]
	}
	return header[:last], samples, logPost, nil
}
