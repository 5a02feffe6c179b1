package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"dashtui/runs"
)

// handlePipelinesKey drives the pipelines overlay. Running a pipeline is
// fire-and-forget: the tracker flips to running immediately and the result
// lands later as a pipelineRunMsg.
func (a AppView) handlePipelinesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pipelines := a.cfg.Pipelines

	switch msg.String() {
	case "esc", "alt+p":
		a.showPipelines = false
		return a, nil

	case "j", "down":
		if a.selectedPipelineIdx < len(pipelines)-1 {
			a.selectedPipelineIdx++
		}
		return a, nil

	case "k", "up":
		if a.selectedPipelineIdx > 0 {
			a.selectedPipelineIdx--
		}
		return a, nil

	case "enter":
		if a.selectedPipelineIdx >= len(pipelines) {
			return a, nil
		}
		p := pipelines[a.selectedPipelineIdx]
		if a.tracker.Get(p.Name).Status == runs.StatusRunning {
			return a, nil
		}
		// Re-runs reuse the remembered input when the config has none.
		input := p.Input
		if input == "" {
			input = a.tracker.Get(p.Name).LastInput
		}
		a.tracker.Start(p.Name, input)
		return a, a.executePipelineCmd(p.Name, input)

	case "r":
		if a.selectedPipelineIdx >= len(pipelines) {
			return a, nil
		}
		name := pipelines[a.selectedPipelineIdx].Name
		if a.tracker.Get(name).Status != runs.StatusRunning {
			a.tracker.Reset(name)
		}
		return a, nil
	}

	return a, nil
}

// handleGlobalSearchKey drives the cache-backed search overlay.
func (a AppView) handleGlobalSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "alt+s":
		a.showGlobalSearch = false
		return a, nil

	case "down", "ctrl+n":
		if a.selectedSearchIdx < len(a.globalSearchHits)-1 {
			a.selectedSearchIdx++
		}
		return a, nil

	case "up", "ctrl+p":
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil

	case "enter":
		if a.selectedSearchIdx < len(a.globalSearchHits) {
			hit := a.globalSearchHits[a.selectedSearchIdx]
			a.showGlobalSearch = false
			return a.openConversation(hit.ConversationID)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.globalSearchInput, cmd = a.globalSearchInput.Update(msg)
	query := a.globalSearchInput.Value()
	if len(query) >= 2 {
		return a, tea.Batch(cmd, a.globalSearchCmd(query))
	}
	a.globalSearchHits = nil
	return a, cmd
}
