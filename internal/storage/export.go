package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/dynfit/internal/sim"
)

type ExportData struct {
	Model   string              `json:"model"`
	Method  string              `json:"method,omitempty"`
	Start   float64             `json:"start"`
	End     float64             `json:"end"`
	Steps   int                 `json:"steps"`
	Times   []float64           `json:"times"`
	Series  map[string][]Number `json:"series"`
	Values  map[string]Number   `json:"values"`
	Data    []ExportDataset     `json:"data,omitempty"`
	Metrics map[string]Number   `json:"metrics,omitempty"`
}

type ExportDataset struct {
	Name   string    `json:"name"`
	T      []float64 `json:"t"`
	Values []Number  `json:"values"`
}

func exportData(model, method string, s *sim.Simulation, metrics map[string]float64) (*ExportData, error) {
	res := s.Results()
	if res == nil {
		return nil, ErrNoResults
	}
	start, end, _ := s.Span()
	data := &ExportData{
		Model:   model,
		Method:  method,
		Start:   start,
		End:     end,
		Steps:   len(res.T),
		Times:   res.T,
		Series:  make(map[string][]Number, len(res.Names)),
		Values:  numbers(s.Snapshot()),
		Metrics: numbers(metrics),
	}
	for _, name := range res.Names {
		data.Series[name] = toNumbers(res.Values[name])
	}
	for _, d := range s.Data() {
		data.Data = append(data.Data, ExportDataset{Name: d.Name, T: d.T, Values: toNumbers(d.Values)})
	}
	return data, nil
}

func toNumbers(vs []float64) []Number {
	out := make([]Number, len(vs))
	for i, v := range vs {
		out[i] = Number(v)
	}
	return out
}

// ExportJSON writes the last run of s, its values and attached data to w.
func ExportJSON(w io.Writer, model, method string, s *sim.Simulation, metrics map[string]float64) error {
	data, err := exportData(model, method, s, metrics)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path, model, method string, s *sim.Simulation, metrics map[string]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, model, method, s, metrics)
}

// ExportCSV writes the last run of s as a states table.
func ExportCSV(w io.Writer, s *sim.Simulation) error {
	res := s.Results()
	if res == nil {
		return ErrNoResults
	}
	return WriteStatesCSV(w, res)
}
