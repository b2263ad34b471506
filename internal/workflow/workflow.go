// Package workflow is the turn-scoped interaction state machine: which
// sub-flow of a turn is open, what the player has selected so far, and the
// two-step confirmation gate in front of the final guess. All state here is
// local-only and discarded at every turn boundary.
package workflow

import (
	"errors"

	"blackvienna/internal/session"
)

var ErrWrongStage = errors.New("action not available in current stage")
var ErrBadCard = errors.New("no such investigation card")
var ErrBadTarget = errors.New("player is not a legal target")
var ErrDoubleUnavailable = errors.New("double investigation not unlocked")
var ErrIncompleteSelection = errors.New("select a card and a player first")
var ErrBadSuspect = errors.New("not a suspect symbol")
var ErrIncompleteGuess = errors.New("all 3 suspects must be chosen")
var ErrBadSlot = errors.New("guess slot out of range")

// Stage is a tagged variant: exactly one is ever in effect, which keeps
// combinations like "eliminated but editing a guess" unrepresentable.
type Stage string

const (
	StageNotMyTurn    Stage = "not_my_turn"
	StageEliminated   Stage = "eliminated"
	StageInvestigate  Stage = "investigate"
	StageGuessEdit    Stage = "guess_edit"
	StageGuessConfirm Stage = "guess_confirm"
)

// NoCard marks an empty card selection.
const NoCard = -1

type Workflow struct {
	stage        Stage
	cardIndex    int
	targetID     string
	doubleCardID string
	slots        [3]string
}

// View is a copy of the workflow state for rendering.
type View struct {
	Stage        Stage
	CardIndex    int
	TargetID     string
	DoubleCardID string
	Slots        [3]string
	CanSubmit    bool
}

func New() *Workflow {
	return &Workflow{stage: StageNotMyTurn, cardIndex: NoCard}
}

func (w *Workflow) Stage() Stage { return w.stage }

func (w *Workflow) View() View {
	return View{
		Stage:        w.stage,
		CardIndex:    w.cardIndex,
		TargetID:     w.targetID,
		DoubleCardID: w.doubleCardID,
		Slots:        w.slots,
		CanSubmit:    w.CanSubmitInvestigation(),
	}
}

// Sync re-derives the reachable stage from the session. Any transition away
// from the local turn, or out of the active phase, throws selection state
// away; a snapshot arriving mid-turn leaves in-progress selections alone.
func (w *Workflow) Sync(m *session.Model) {
	switch {
	case m.Phase != session.PhaseActive:
		w.reset(StageNotMyTurn)
	case isEliminated(m):
		w.reset(StageEliminated)
	case !m.IsMyTurn():
		w.reset(StageNotMyTurn)
	default:
		if w.stage == StageNotMyTurn || w.stage == StageEliminated {
			w.reset(StageInvestigate)
		}
	}
}

func isEliminated(m *session.Model) bool {
	p, ok := m.LocalPlayer()
	return ok && p.Status == session.StatusEliminated
}

func (w *Workflow) reset(to Stage) {
	*w = Workflow{stage: to, cardIndex: NoCard}
}

// SelectCard picks one of the face-up investigation cards by index. An
// exhausted deck keeps its slot in the list as a letterless card so indexes
// stay stable; those slots are not selectable.
func (w *Workflow) SelectCard(i int, a *session.Active) error {
	if w.stage != StageInvestigate {
		return ErrWrongStage
	}
	if a == nil || i < 0 || i >= len(a.FaceUpCards) {
		return ErrBadCard
	}
	if len(a.FaceUpCards[i].Letters) == 0 {
		return ErrBadCard
	}
	w.cardIndex = i
	return nil
}

// SelectTarget picks the player to question. Legality comes from the
// server's can_question list, never from local rules.
func (w *Workflow) SelectTarget(playerID string, a *session.Active) error {
	if w.stage != StageInvestigate {
		return ErrWrongStage
	}
	if a == nil || !inCandidates(playerID, a.CanQuestion) {
		return ErrBadTarget
	}
	w.targetID = playerID
	return nil
}

func inCandidates(id string, candidates []session.LobbyPlayer) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ToggleDouble attaches a zero-coin card for a double investigation, or
// detaches it when the same card is toggled again.
func (w *Workflow) ToggleDouble(cardID string, a *session.Active) error {
	if w.stage != StageInvestigate {
		return ErrWrongStage
	}
	if a == nil || !a.DoubleInvestigationEnabled {
		return ErrDoubleUnavailable
	}
	found := false
	for _, c := range a.ZeroCoinCards {
		if c.ID == cardID {
			found = true
			break
		}
	}
	if !found {
		return ErrBadCard
	}
	if w.doubleCardID == cardID {
		w.doubleCardID = ""
	} else {
		w.doubleCardID = cardID
	}
	return nil
}

// CanSubmitInvestigation reports whether both mandatory selections are made.
func (w *Workflow) CanSubmitInvestigation() bool {
	return w.stage == StageInvestigate && w.cardIndex != NoCard && w.targetID != ""
}

// SubmitInvestigation hands back the accumulated selections and clears them
// all, whatever the server ends up replying.
func (w *Workflow) SubmitInvestigation() (cardIndex int, targetID, doubleCardID string, err error) {
	if !w.CanSubmitInvestigation() {
		if w.stage != StageInvestigate {
			return NoCard, "", "", ErrWrongStage
		}
		return NoCard, "", "", ErrIncompleteSelection
	}
	cardIndex, targetID, doubleCardID = w.cardIndex, w.targetID, w.doubleCardID
	w.cardIndex = NoCard
	w.targetID = ""
	w.doubleCardID = ""
	return cardIndex, targetID, doubleCardID, nil
}

// EnterGuess leaves the investigate sub-flow for the final-guess editor.
func (w *Workflow) EnterGuess() error {
	if w.stage != StageInvestigate {
		return ErrWrongStage
	}
	w.stage = StageGuessEdit
	return nil
}

// SetSlot fills (or clears, with "") one of the three guess slots.
func (w *Workflow) SetSlot(i int, letter string) error {
	if w.stage != StageGuessEdit {
		return ErrWrongStage
	}
	if i < 0 || i >= len(w.slots) {
		return ErrBadSlot
	}
	if letter != "" && !session.IsSuspect(letter) {
		return ErrBadSuspect
	}
	w.slots[i] = letter
	return nil
}

// SubmitGuess freezes a fully-filled guess and moves to the confirmation
// gate. A guess that eliminates you on failure never goes out on a single
// keypress.
func (w *Workflow) SubmitGuess() error {
	if w.stage != StageGuessEdit {
		return ErrWrongStage
	}
	for _, s := range w.slots {
		if s == "" {
			return ErrIncompleteGuess
		}
	}
	w.stage = StageGuessConfirm
	return nil
}

// ConfirmGuess is the second, distinct acknowledgment. It hands back the
// frozen guess and resets the guess sub-flow.
func (w *Workflow) ConfirmGuess() ([]string, error) {
	if w.stage != StageGuessConfirm {
		return nil, ErrWrongStage
	}
	guess := []string{w.slots[0], w.slots[1], w.slots[2]}
	w.slots = [3]string{}
	w.stage = StageInvestigate
	return guess, nil
}

// CancelConfirm backs out of the confirmation gate; the three chosen values
// stay in place for further editing.
func (w *Workflow) CancelConfirm() error {
	if w.stage != StageGuessConfirm {
		return ErrWrongStage
	}
	w.stage = StageGuessEdit
	return nil
}

// ExitGuess abandons the guess sub-flow entirely, clearing the slots.
func (w *Workflow) ExitGuess() error {
	if w.stage != StageGuessEdit && w.stage != StageGuessConfirm {
		return ErrWrongStage
	}
	w.slots = [3]string{}
	w.stage = StageInvestigate
	return nil
}
