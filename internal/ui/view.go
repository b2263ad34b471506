package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"blackvienna/internal/notify"
	"blackvienna/internal/session"
	"blackvienna/internal/workflow"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	turnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

	noteStyles = map[notify.Severity]lipgloss.Style{
		notify.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		notify.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		notify.Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		notify.Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Black Vienna"))
	b.WriteString("\n\n")

	if !m.view.Connected && m.screen != screenMenu {
		b.WriteString(noteStyles[notify.Error].Render("disconnected") + "\n\n")
	}

	m.renderNotes(&b)

	switch m.screen {
	case screenMenu:
		m.renderMenu(&b)
	case screenLobby:
		m.renderLobby(&b)
	case screenBoard:
		m.renderBoard(&b)
	case screenEnded:
		m.renderEnded(&b)
	}
	return b.String()
}

func (m Model) renderNotes(b *strings.Builder) {
	for _, n := range m.view.Notes {
		style, ok := noteStyles[n.Severity]
		if !ok {
			style = noteStyles[notify.Info]
		}
		fmt.Fprintf(b, "%s\n", style.Render("• "+n.Message))
	}
	if len(m.view.Notes) > 0 {
		b.WriteString("\n")
	}
}

func (m Model) renderMenu(b *strings.Builder) {
	b.WriteString("Name: " + m.nameInput.View() + "\n")
	b.WriteString("Code: " + m.codeInput.View() + "\n\n")
	b.WriteString(dimStyle.Render("[tab] switch field  [enter] create or join  [ctrl+c] quit"))
	b.WriteString("\n")
}

func (m Model) renderLobby(b *strings.Builder) {
	lobby := m.view.Model.Lobby
	if lobby == nil {
		return
	}
	fmt.Fprintf(b, "Game %s — waiting for players (%d/%d)\n\n",
		m.view.Model.SessionID, len(lobby.Players), lobby.MaxPlayers)
	for _, p := range lobby.Players {
		marker := "  "
		if p.ID == lobby.HostID {
			marker = "★ "
		}
		line := marker + p.Name
		if p.ID == m.view.Model.LocalPlayerID {
			line += " (you)"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	if m.view.Model.IsHost {
		if lobby.CanStart {
			b.WriteString(dimStyle.Render("[s] start game  [q] leave"))
		} else {
			fmt.Fprintf(b, "%s\n", dimStyle.Render(
				fmt.Sprintf("need %d players to start", lobby.MinPlayers)))
			b.WriteString(dimStyle.Render("[q] leave"))
		}
	} else {
		b.WriteString(dimStyle.Render("waiting for the host to start  [q] leave"))
	}
	b.WriteString("\n")
}

func (m Model) renderBoard(b *strings.Builder) {
	a := m.view.Model.Active
	if a == nil {
		return
	}

	m.renderPlayers(b, a)
	fmt.Fprintf(b, "\nCoin pool: %d   Investigations: %d", a.CentralCoins, a.TotalInvestigations)
	if a.DoubleInvestigationEnabled {
		b.WriteString("   " + selectedStyle.Render("double unlocked"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(b, "Your cards: %s\n\n", strings.Join(m.view.Model.Active.MyCards, " "))

	switch m.view.Flow.Stage {
	case workflow.StageNotMyTurn:
		b.WriteString(dimStyle.Render("waiting for your turn  [x] dismiss note  [q] leave"))
	case workflow.StageEliminated:
		b.WriteString(noteStyles[notify.Warning].Render("you are eliminated — spectating"))
	case workflow.StageInvestigate:
		m.renderInvestigate(b, a)
	case workflow.StageGuessEdit, workflow.StageGuessConfirm:
		m.renderGuess(b)
	}
	b.WriteString("\n")

	m.renderHistory(b, a)
}

func (m Model) renderPlayers(b *strings.Builder, a *session.Active) {
	for i, p := range a.Players {
		line := fmt.Sprintf("%s (%d cards)", p.Name, p.CardCount)
		switch p.Status {
		case session.StatusEliminated:
			line = dimStyle.Render(line + " ✗")
		case session.StatusWinner:
			line = selectedStyle.Render(line + " ♛")
		}
		if i == a.CurrentInvestigator {
			line = turnStyle.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
}

func (m Model) renderInvestigate(b *strings.Builder, a *session.Active) {
	b.WriteString(turnStyle.Render("Your turn.") + "\n\n")

	b.WriteString("Investigation cards:\n")
	for i, c := range a.FaceUpCards {
		if len(c.Letters) == 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  [%d] deck exhausted", i+1)) + "\n")
			continue
		}
		line := fmt.Sprintf("  [%d] %s", i+1, strings.Join(c.Letters, " "))
		if i == m.view.Flow.CardIndex {
			line = selectedStyle.Render(line + "  ◀")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nQuestion:\n")
	for i, p := range a.CanQuestion {
		cursor := "  "
		if i == m.targetCursor {
			cursor = "> "
		}
		line := cursor + p.Name
		if p.ID == m.view.Flow.TargetID {
			line = selectedStyle.Render(line + "  ◀")
		}
		b.WriteString(line + "\n")
	}

	if a.DoubleInvestigationEnabled && len(a.ZeroCoinCards) > 0 {
		b.WriteString("\nZero-coin cards (double):\n")
		for i, c := range a.ZeroCoinCards {
			cursor := "  "
			if i == m.doubleCursor {
				cursor = "> "
			}
			line := fmt.Sprintf("%s%s  (vs %s)", cursor, strings.Join(c.Letters, " "), c.Questioned)
			if c.ID == m.view.Flow.DoubleCardID {
				line = selectedStyle.Render(line + "  ◀")
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n")
	help := "[1-3] card  [j/k] move  [enter] pick player  [g] final guess  [q] leave"
	if a.DoubleInvestigationEnabled {
		help = "[1-3] card  [j/k] move  [enter] pick player  [J/K/d] double  [g] final guess  [q] leave"
	}
	if m.view.Flow.CanSubmit {
		help = "[i] investigate  " + help
	}
	b.WriteString(dimStyle.Render(help))
}

func (m Model) renderGuess(b *strings.Builder) {
	b.WriteString("Final guess — name the three conspirators:\n\n  ")
	for _, s := range m.view.Flow.Slots {
		if s == "" {
			s = "_"
		}
		b.WriteString(selectedStyle.Render("["+s+"]") + " ")
	}
	b.WriteString("\n\n")

	if m.view.Flow.Stage == workflow.StageGuessConfirm {
		b.WriteString(noteStyles[notify.Warning].Render(
			"A wrong guess eliminates you. Submit this guess?"))
		b.WriteString("\n" + dimStyle.Render("[y] yes  [n] keep editing"))
	} else {
		b.WriteString(dimStyle.Render("[a-z] letter  [0] Ω  [backspace] erase  [enter] submit  [esc] back"))
	}
}

func (m Model) renderHistory(b *strings.Builder, a *session.Active) {
	if len(a.History) == 0 {
		return
	}
	b.WriteString("\n" + dimStyle.Render("History:") + "\n")
	start := 0
	if len(a.History) > 5 {
		start = len(a.History) - 5
	}
	for _, r := range a.History[start:] {
		line := fmt.Sprintf("  r%d  %s → %s  %s: %d coins",
			r.Round, r.InvestigatorName, r.QuestionedName,
			strings.Join(r.Letters, ""), r.CoinsTaken)
		if r.IsDouble {
			line += "  (double)"
		}
		b.WriteString(dimStyle.Render(line) + "\n")
	}
}

func (m Model) renderEnded(b *strings.Builder) {
	c := m.view.Model.Conclusion
	if c == nil {
		return
	}
	if c.Kind == session.ConclusionWon {
		fmt.Fprintf(b, "%s\n\n", turnStyle.Render(c.WinnerName+" wins!"))
	} else {
		fmt.Fprintf(b, "%s\n\n", titleStyle.Render("Game over: "+c.Reason))
	}
	if len(c.Solution) == 3 {
		fmt.Fprintf(b, "The conspirators were: %s\n\n", strings.Join(c.Solution, " "))
	}
	b.WriteString(dimStyle.Render("[enter] back to menu  [ctrl+c] quit"))
	b.WriteString("\n")
}
