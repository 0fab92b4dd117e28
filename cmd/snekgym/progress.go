package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekgym/rollout"
)

type episodeMsg struct {
	ID      string
	Seed    int64
	Outcome string
	Score   int
	Steps   int
}

type tickMsg time.Time

type runDoneMsg struct{}

type progressModel struct {
	policy   string
	total    int
	stats    *rollout.Stats
	updates  chan episodeMsg
	done     <-chan struct{}
	start    time.Time
	recent   []string
	finished bool
	quitting bool
}

func newProgressModel(stats *rollout.Stats, updates chan episodeMsg, done <-chan struct{}, total int, policy string) progressModel {
	return progressModel{
		policy:  policy,
		total:   total,
		stats:   stats,
		updates: updates,
		done:    done,
		start:   time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEpisode(updates chan episodeMsg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return runDoneMsg{}
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(waitForEpisode(m.updates), waitForDone(m.done), tickCmd())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case runDoneMsg:
		m.finished = true
		return m, tea.Quit
	case episodeMsg:
		line := fmt.Sprintf("%s seed %d: %s, score %d, steps %d", shortID(msg.ID), msg.Seed, msg.Outcome, msg.Score, msg.Steps)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, waitForEpisode(m.updates)
	}
	return m, nil
}

func (m progressModel) View() string {
	elapsed := time.Since(m.start)
	episodes := m.stats.Episodes.Load()
	steps := m.stats.Steps.Load()

	var epsPerSec, stepsPerSec, meanScore float64
	if elapsed.Seconds() >= 1 {
		epsPerSec = float64(episodes) / elapsed.Seconds()
		stepsPerSec = float64(steps) / elapsed.Seconds()
	}
	if episodes > 0 {
		meanScore = float64(m.stats.Score.Load()) / float64(episodes)
	}

	s := fmt.Sprintf("Policy:         %s\n", m.policy)
	s += fmt.Sprintf("Episodes:       %d / %d\n", episodes, m.total)
	s += fmt.Sprintf("Steps:          %d\n", steps)
	s += fmt.Sprintf("Mean score:     %.2f (max %d)\n", meanScore, m.stats.MaxScore.Load())
	s += fmt.Sprintf("Victories:      %d\n", m.stats.Victories.Load())
	s += fmt.Sprintf("Collisions:     %d\n", m.stats.Collisions.Load())
	s += fmt.Sprintf("Truncated:      %d\n", m.stats.Truncated.Load())
	s += fmt.Sprintf("Duration:       %s\n", elapsed.Round(time.Second))
	s += fmt.Sprintf("Episodes/Sec:   %.2f\n", epsPerSec)
	s += fmt.Sprintf("Steps/Sec:      %.2f\n\n", stepsPerSec)

	s += "Recent Episodes:\n"
	for _, line := range m.recent {
		s += line + "\n"
	}

	if m.finished {
		s += "\nDone.\n"
	} else {
		s += "\nPress q to quit.\n"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
