package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg reports sampler progress for one chain.
type ProgressMsg struct {
	Chain      int
	Iter       int
	Total      int
	Burn       int
	Acceptance float64
	LogPost    float64
}

// DoneMsg ends the progress view.
type DoneMsg struct {
	Err error
}

type TickMsg time.Time

type chainState struct {
	last    ProgressMsg
	history []float64
}

// FitProgress is a Bubble Tea model that shows per-chain progress while a
// fit runs in another goroutine. Send it ProgressMsg and finally DoneMsg.
type FitProgress struct {
	title    string
	chains   map[int]*chainState
	frame    int
	started  time.Time
	done     bool
	err      error
	width    int
	onCancel func()
}

func NewFitProgress(title string, onCancel func()) FitProgress {
	return FitProgress{
		title:    title,
		chains:   make(map[int]*chainState),
		started:  time.Now(),
		width:    40,
		onCancel: onCancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m FitProgress) Init() tea.Cmd {
	return tick()
}

func (m FitProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.onCancel != nil {
				m.onCancel()
			}
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(10, min(60, msg.Width-40))
	case ProgressMsg:
		cs, ok := m.chains[msg.Chain]
		if !ok {
			cs = &chainState{}
			m.chains[msg.Chain] = cs
		}
		cs.last = msg
		cs.history = append(cs.history, msg.LogPost)
		if len(cs.history) > 200 {
			cs.history = cs.history[len(cs.history)-200:]
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case TickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m FitProgress) View() string {
	var b strings.Builder
	spinner := AnimatedSpinner(m.frame)
	if m.done {
		spinner = "✓"
	}
	b.WriteString(TitleStyle.Render(spinner+" "+m.title) + "\n\n")

	ids := make([]int, 0, len(m.chains))
	for id := range m.chains {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		cs := m.chains[id]
		p := cs.last
		frac := 0.0
		if p.Total > 0 {
			frac = float64(p.Iter) / float64(p.Total)
		}
		phase := "sample"
		if p.Iter < p.Burn {
			phase = "burn"
		}
		fmt.Fprintf(&b, "%s %s %s %s %s\n",
			MetricLabel.Render(fmt.Sprintf("chain %d", id)),
			ProgressBar(frac, m.width),
			MetricValue.Render(fmt.Sprintf("%5.1f%%", 100*frac)),
			MetricLabel.Render(fmt.Sprintf("%-6s acc %.2f", phase, p.Acceptance)),
			Subtle.Render(Sparkline(cs.history, 20)),
		)
	}

	elapsed := time.Since(m.started).Round(100 * time.Millisecond)
	b.WriteString("\n" + Subtle.Render(fmt.Sprintf("elapsed %s  q: cancel", elapsed)) + "\n")
	if m.err != nil {
		b.WriteString(WarnStyle.Render("error: "+m.err.Error()) + "\n")
	}
	return b.String()
}

// Err returns the error delivered by DoneMsg, if any.
func (m FitProgress) Err() error { return m.err }
