// Package ui is the terminal front end. It renders the controller's view
// and translates keypresses into controller intents; it owns no session
// state of its own beyond cursors and text inputs.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"blackvienna/internal/controller"
	"blackvienna/internal/session"
	"blackvienna/internal/workflow"
	"blackvienna/pkg/protocol"
)

type screen int

const (
	screenMenu screen = iota
	screenLobby
	screenBoard
	screenEnded
)

// refreshMsg is poked into msgCh whenever the controller's state changes.
type refreshMsg struct{}

type Model struct {
	ctrl   *controller.Controller
	msgCh  chan tea.Msg
	cancel context.CancelFunc

	screen screen
	view   controller.View

	nameInput textinput.Model
	codeInput textinput.Model
	focusCode bool

	// cursor into the current can_question list
	targetCursor int
	// cursor into the zero-coin cards for double selection
	doubleCursor int

	width  int
	height int
}

// New builds the UI model. msgCh must be the channel the controller's
// onChange hook writes to.
func New(ctrl *controller.Controller, msgCh chan tea.Msg, cancel context.CancelFunc, defaultName string) Model {
	name := textinput.New()
	name.Placeholder = "your name"
	name.CharLimit = 24
	name.SetValue(defaultName)
	name.Focus()

	code := textinput.New()
	code.Placeholder = "game code (blank to create)"
	code.CharLimit = 6

	return Model{
		ctrl:      ctrl,
		msgCh:     msgCh,
		cancel:    cancel,
		nameInput: name,
		codeInput: code,
	}
}

// Poke returns the onChange hook for the controller. Dropping a poke when
// one is already queued is fine: the UI re-reads the whole view anyway.
func Poke(msgCh chan tea.Msg) func() {
	return func() {
		select {
		case msgCh <- refreshMsg{}:
		default:
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForMsg())
}

func (m Model) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgCh
	}
}

// fetchView asks the controller loop for a consistent snapshot. The reply
// is buffered so a dying loop cannot wedge the UI.
func (m *Model) fetchView() {
	reply := make(chan controller.View, 1)
	m.ctrl.Inbox() <- controller.GetView{Reply: reply}
	select {
	case v := <-reply:
		m.view = v
	case <-time.After(time.Second):
	}
	m.screen = screenFor(m.view.Model.Phase)
	m.clampCursors()
}

func screenFor(p session.Phase) screen {
	switch p {
	case session.PhaseLobby:
		return screenLobby
	case session.PhaseActive:
		return screenBoard
	case session.PhaseConcluded:
		return screenEnded
	default:
		return screenMenu
	}
}

func (m *Model) clampCursors() {
	a := m.view.Model.Active
	if a == nil {
		m.targetCursor, m.doubleCursor = 0, 0
		return
	}
	if m.targetCursor >= len(a.CanQuestion) {
		m.targetCursor = 0
	}
	if m.doubleCursor >= len(a.ZeroCoinCards) {
		m.doubleCursor = 0
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.fetchView()
		return m, m.waitForMsg()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.ctrl.Inbox() <- controller.Shutdown{}
			m.cancel()
			return m, tea.Quit
		}
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenLobby:
			return m.updateLobby(msg)
		case screenBoard:
			return m.updateBoard(msg)
		case screenEnded:
			return m.updateEnded(msg)
		}
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusCode = !m.focusCode
		if m.focusCode {
			m.nameInput.Blur()
			m.codeInput.Focus()
		} else {
			m.codeInput.Blur()
			m.nameInput.Focus()
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.nameInput.Value())
		code := strings.TrimSpace(m.codeInput.Value())
		if code == "" {
			m.ctrl.Inbox() <- controller.CreateGame{PlayerName: name}
		} else {
			m.ctrl.Inbox() <- controller.JoinGame{PlayerName: name, GameID: code}
		}
		return m, nil
	}
	var cmd tea.Cmd
	if m.focusCode {
		m.codeInput, cmd = m.codeInput.Update(msg)
	} else {
		m.nameInput, cmd = m.nameInput.Update(msg)
	}
	return m, cmd
}

func (m Model) updateLobby(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		m.ctrl.Inbox() <- controller.StartGame{}
	case "q", "esc":
		m.ctrl.Inbox() <- controller.LeaveGame{}
	}
	return m, nil
}

func (m Model) updateEnded(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "enter":
		m.ctrl.Inbox() <- controller.LeaveGame{}
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view.Flow.Stage {
	case workflow.StageGuessEdit:
		return m.updateGuessEdit(msg)
	case workflow.StageGuessConfirm:
		return m.updateGuessConfirm(msg)
	}

	a := m.view.Model.Active
	key := msg.String()
	switch key {
	case "1", "2", "3":
		m.ctrl.Inbox() <- controller.SelectCard{Index: int(key[0] - '1')}
	case "j", "down":
		if a != nil && m.targetCursor < len(a.CanQuestion)-1 {
			m.targetCursor++
		}
	case "k", "up":
		if a != nil && m.targetCursor > 0 {
			m.targetCursor--
		}
	case "enter":
		if a != nil && len(a.CanQuestion) > 0 {
			m.ctrl.Inbox() <- controller.SelectTarget{PlayerID: a.CanQuestion[m.targetCursor].ID}
		}
	case "J":
		if a != nil && m.doubleCursor < len(a.ZeroCoinCards)-1 {
			m.doubleCursor++
		}
	case "K":
		if a != nil && m.doubleCursor > 0 {
			m.doubleCursor--
		}
	case "d":
		if a != nil && len(a.ZeroCoinCards) > 0 {
			m.ctrl.Inbox() <- controller.ToggleDouble{CardID: a.ZeroCoinCards[m.doubleCursor].ID}
		}
	case "i":
		m.ctrl.Inbox() <- controller.SubmitInvestigation{}
	case "g":
		m.ctrl.Inbox() <- controller.EnterGuess{}
	case "x":
		if len(m.view.Notes) > 0 {
			m.ctrl.Inbox() <- controller.DismissNote{ID: m.view.Notes[0].ID}
		}
	case "q":
		m.ctrl.Inbox() <- controller.LeaveGame{}
	}
	return m, nil
}

func (m Model) updateGuessEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc":
		m.ctrl.Inbox() <- controller.ExitGuess{}
		return m, nil
	case "enter":
		m.ctrl.Inbox() <- controller.SubmitGuess{}
		return m, nil
	case "backspace":
		if i := lastFilledSlot(m.view.Flow.Slots); i >= 0 {
			m.ctrl.Inbox() <- controller.SetGuessSlot{Slot: i, Letter: ""}
		}
		return m, nil
	case "0":
		key = "Ω"
	}
	if letter := suspectKey(key); letter != "" {
		if i := firstEmptySlot(m.view.Flow.Slots); i >= 0 {
			m.ctrl.Inbox() <- controller.SetGuessSlot{Slot: i, Letter: letter}
		}
	}
	return m, nil
}

func (m Model) updateGuessConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.ctrl.Inbox() <- controller.ConfirmGuess{}
	case "n", "esc":
		m.ctrl.Inbox() <- controller.CancelConfirm{}
	}
	return m, nil
}

// suspectKey maps a keypress to a suspect symbol, "" when it is not one.
func suspectKey(key string) string {
	up := strings.ToUpper(key)
	for _, s := range protocol.Suspects {
		if up == s {
			return s
		}
	}
	return ""
}

func firstEmptySlot(slots [3]string) int {
	for i, s := range slots {
		if s == "" {
			return i
		}
	}
	return -1
}

func lastFilledSlot(slots [3]string) int {
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i] != "" {
			return i
		}
	}
	return -1
}
