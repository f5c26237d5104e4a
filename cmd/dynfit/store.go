package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tSPAN\tPOINTS\tMETHOD")

	for _, run := range runs {
		method := run.Method
		if method == "" {
			method = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t[%g, %g]\t%d\t%s\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Start,
			run.End,
			run.Points,
			method,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.Kind == storage.KindFit {
		return plotTrace(st, meta)
	}

	states, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states.T) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(states.T))

	names, series := seriesOf(states)
	for i, name := range names {
		graph := asciigraph.Plot(series[i],
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(fmt.Sprintf("%s vs t on [%g, %g]", name, meta.Start, meta.End)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func plotTrace(st *storage.Store, meta *storage.RunMetadata) error {
	names, rows, logPost, err := st.LoadTrace(meta.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	fmt.Printf("fit: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(rows))

	for j, name := range names {
		trace := make([]float64, len(rows))
		for i, row := range rows {
			trace[i] = row[j]
		}
		fmt.Println(asciigraph.Plot(trace,
			asciigraph.Height(plotHeight/2),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(name+" trace"),
		))
		fmt.Println()
	}
	fmt.Println(asciigraph.Plot(logPost,
		asciigraph.Height(plotHeight/2),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("log posterior"),
	))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if meta.Kind != storage.KindFit {
		return enc.Encode(meta)
	}
	rec, err := st.LoadFit(runID)
	if err != nil {
		return err
	}
	return enc.Encode(rec)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.Kind != storage.KindFit {
		states, err := st.LoadStates(runID)
		if err != nil {
			return err
		}
		return writeTable(states.Columns, states.T, states.Rows)
	}

	names, rows, logPost, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	return writeTable(append([]string{"sample"}, append(names, "log_post")...), nil, appendColumn(rows, logPost))
}

func appendColumn(rows [][]float64, col []float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append(append([]float64(nil), row...), col[i])
	}
	return out
}

// writeTable prints rows to stdout. With a nil index the row number is
// used as the first column.
func writeTable(header []string, index []float64, rows [][]float64) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		record := make([]string, 0, len(row)+1)
		if index != nil {
			record = append(record, strconv.FormatFloat(index[i], 'g', -1, 64))
		} else {
			record = append(record, strconv.Itoa(i))
		}
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// seriesOf returns the named series of a stored run, in column order.
func seriesOf(states *storage.States) ([]string, [][]float64) {
	names := states.Columns[1:]
	out := make([][]float64, len(names))
	for i, name := range names {
		out[i], _ = states.Series(name)
	}
	return names, out
}
