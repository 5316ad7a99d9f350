package ui

import (
	"fmt"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/state"
)

// uiSnapshot переносит срез состояния UI из state machine в goroutine UI.
type uiSnapshot struct {
	State       state.State
	UI          state.UIState
	UserLine    string
	Nominations []nominationView
}

// nominationView: всё, что нужно карточке номинации для отрисовки.
type nominationView struct {
	ID         string
	Title      string
	Candidates []ballot.Candidate
	Selected   string
	Saved      string
	Status     state.VoteStatus
	Phase      state.Phase
	CanSelect  bool
	CanSave    bool
	CanUnvote  bool
	ShowUnvote bool
}

// buildSnapshot вызывается из event-loop, поэтому копирует всё, что читает из ctx.
func buildSnapshot(ctx *state.AppContext) uiSnapshot {
	snap := uiSnapshot{
		State:    ctx.State,
		UI:       ctx.UI,
		UserLine: userLine(ctx),
	}
	if ctx.Ballot == nil || ctx.Votes == nil {
		return snap
	}
	ready := ctx.State == state.StateReady
	// без входа выбор остаётся кликабельным, чтобы показать подсказку о входе
	guest := ctx.State == state.StateUnauthenticated || ctx.State == state.StateAuthInProgress
	for _, nom := range ctx.Ballot.Nominations {
		vote, _ := ctx.Votes.Get(nom.ID)
		snap.Nominations = append(snap.Nominations, nominationView{
			ID:         nom.ID,
			Title:      nom.Title,
			Candidates: append([]ballot.Candidate(nil), nom.Candidates...),
			Selected:   vote.Selected,
			Saved:      vote.Saved,
			Status:     vote.Status,
			Phase:      ctx.Phase(nom.ID),
			CanSelect:  guest || (ready && ctx.Votes.CanSelect(nom.ID)),
			CanSave:    ready && vote.CanSave(),
			CanUnvote:  ready && ctx.Votes.CanUnvote(nom.ID),
			ShowUnvote: ctx.Votes.AllowUnvote(),
		})
	}
	return snap
}

func userLine(ctx *state.AppContext) string {
	switch {
	case ctx.User != nil:
		return "Вы вошли как " + ctx.User.Label()
	case ctx.State == state.StateLoadingProfile:
		return "Вы вошли как …"
	default:
		return "Вы не вошли"
	}
}

func nominationStatusText(v nominationView) string {
	switch v.Phase {
	case state.PhaseUnauthenticated:
		return "Войдите через Twitch, чтобы голосовать"
	case state.PhaseSelecting:
		if v.Status == state.VoteSaving {
			return "Сохраняем голос…"
		}
		return "Нажмите «Голосовать», чтобы сохранить выбор"
	case state.PhaseLocked:
		if v.Status == state.VoteUnvoting {
			return "Отменяем голос…"
		}
		return "Ваш голос: " + candidateTitle(v.Candidates, v.Saved)
	default:
		return "Выберите кандидата"
	}
}

func candidateTitle(candidates []ballot.Candidate, id string) string {
	for _, c := range candidates {
		if c.ID == id {
			return c.Title
		}
	}
	return id
}

// candidateLabels возвращает подписи вариантов; повторяющиеся названия дополняются ID.
func candidateLabels(candidates []ballot.Candidate) []string {
	seen := make(map[string]int, len(candidates))
	for _, c := range candidates {
		seen[c.Title]++
	}
	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Title] > 1 {
			labels = append(labels, fmt.Sprintf("%s (%s)", c.Title, c.ID))
			continue
		}
		labels = append(labels, c.Title)
	}
	return labels
}
