package state

import (
	"errors"
	"sort"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/config"
)

// VoteStatus: состояние голоса по одной номинации.
type VoteStatus string

const (
	VoteNone     VoteStatus = "NoSelection"
	VoteSelected VoteStatus = "Selected"
	VoteSaving   VoteStatus = "Saving"
	VoteLocked   VoteStatus = "Locked"
	VoteUnvoting VoteStatus = "Unvoting"
)

var (
	ErrUnknownNomination = errors.New("unknown nomination")
	ErrUnknownCandidate  = errors.New("candidate is not part of the nomination")
	ErrVoteLocked        = errors.New("vote is already saved")
	ErrBusy              = errors.New("request in flight")
	ErrNothingSelected   = errors.New("no candidate selected")
	ErrUnvoteDisabled    = errors.New("unvote is disabled")
	ErrNotLocked         = errors.New("no saved vote")
	ErrUnexpectedResult  = errors.New("result does not match a pending request")
)

// NominationVote: локальное представление голоса по номинации.
// Saved хранит подтверждённого сервером кандидата, Selected текущий выбор в UI.
type NominationVote struct {
	NominationID string
	Selected     string
	Saved        string
	Status       VoteStatus
}

// Busy сообщает, что по номинации идёт запрос и кнопки должны быть заблокированы.
func (v NominationVote) Busy() bool {
	return v.Status == VoteSaving || v.Status == VoteUnvoting
}

// CanSave: кнопка «Голосовать» доступна только при несохранённом выборе.
func (v NominationVote) CanSave() bool {
	return v.Status == VoteSelected
}

// Board хранит голоса по всем номинациям бюллетеня.
type Board struct {
	ballot      *ballot.Ballot
	policy      config.VotePolicy
	allowUnvote bool
	votes       map[string]*NominationVote

	// revision растёт с каждым подтверждённым сервером изменением;
	// confirmed хранит ревизию последнего изменения по номинации.
	revision  uint64
	confirmed map[string]uint64
}

// NewBoard создаёт табло с пустыми голосами для каждой номинации.
func NewBoard(b *ballot.Ballot, policy config.VotePolicy, allowUnvote bool) *Board {
	if policy == "" {
		policy = config.VotePolicyLocked
	}
	board := &Board{
		ballot:      b,
		policy:      policy,
		allowUnvote: allowUnvote,
		votes:       make(map[string]*NominationVote),
		confirmed:   make(map[string]uint64),
	}
	if b != nil {
		for _, nom := range b.Nominations {
			board.votes[nom.ID] = &NominationVote{NominationID: nom.ID, Status: VoteNone}
		}
	}
	return board
}

// Policy возвращает политику изменения сохранённых голосов.
func (b *Board) Policy() config.VotePolicy { return b.policy }

// AllowUnvote сообщает, включена ли отмена голоса.
func (b *Board) AllowUnvote() bool { return b.allowUnvote }

// Get возвращает копию голоса по номинации.
func (b *Board) Get(nominationID string) (NominationVote, bool) {
	v, ok := b.votes[nominationID]
	if !ok {
		return NominationVote{}, false
	}
	return *v, true
}

// All возвращает копии голосов в порядке бюллетеня.
func (b *Board) All() []NominationVote {
	if b.ballot == nil {
		return nil
	}
	out := make([]NominationVote, 0, len(b.ballot.Nominations))
	for _, nom := range b.ballot.Nominations {
		if v, ok := b.votes[nom.ID]; ok {
			out = append(out, *v)
		}
	}
	return out
}

// CanSelect сообщает, можно ли сейчас менять выбор в номинации.
func (b *Board) CanSelect(nominationID string) bool {
	v, ok := b.votes[nominationID]
	if !ok || v.Busy() {
		return false
	}
	return v.Status != VoteLocked || b.policy == config.VotePolicyChangeable
}

// CanUnvote сообщает, доступна ли кнопка отмены голоса.
func (b *Board) CanUnvote(nominationID string) bool {
	v, ok := b.votes[nominationID]
	return ok && b.allowUnvote && v.Status == VoteLocked
}

// Select запоминает локальный выбор кандидата.
func (b *Board) Select(nominationID, candidateID string) error {
	v, ok := b.votes[nominationID]
	if !ok {
		return ErrUnknownNomination
	}
	if !b.ballot.HasCandidate(nominationID, candidateID) {
		return ErrUnknownCandidate
	}
	if v.Busy() {
		return ErrBusy
	}
	if v.Status == VoteLocked && b.policy != config.VotePolicyChangeable {
		return ErrVoteLocked
	}
	v.Selected = candidateID
	if v.Saved != "" && candidateID == v.Saved {
		v.Status = VoteLocked
		return nil
	}
	v.Status = VoteSelected
	return nil
}

// BeginSave переводит номинацию в Saving и возвращает выбранного кандидата.
func (b *Board) BeginSave(nominationID string) (string, error) {
	v, ok := b.votes[nominationID]
	if !ok {
		return "", ErrUnknownNomination
	}
	if v.Busy() {
		return "", ErrBusy
	}
	if v.Status != VoteSelected || v.Selected == "" {
		return "", ErrNothingSelected
	}
	v.Status = VoteSaving
	return v.Selected, nil
}

// SaveSucceeded фиксирует голос после ответа {"ok":true}.
func (b *Board) SaveSucceeded(nominationID string) error {
	v, err := b.pending(nominationID, VoteSaving)
	if err != nil {
		return err
	}
	v.Saved = v.Selected
	v.Status = VoteLocked
	b.confirm(nominationID)
	return nil
}

// SaveFailed возвращает номинацию к несохранённому выбору.
func (b *Board) SaveFailed(nominationID string) error {
	v, err := b.pending(nominationID, VoteSaving)
	if err != nil {
		return err
	}
	v.Status = VoteSelected
	return nil
}

// BeginUnvote переводит сохранённый голос в Unvoting.
func (b *Board) BeginUnvote(nominationID string) error {
	v, ok := b.votes[nominationID]
	if !ok {
		return ErrUnknownNomination
	}
	if !b.allowUnvote {
		return ErrUnvoteDisabled
	}
	if v.Busy() {
		return ErrBusy
	}
	if v.Status != VoteLocked {
		return ErrNotLocked
	}
	v.Status = VoteUnvoting
	return nil
}

// UnvoteSucceeded очищает голос.
func (b *Board) UnvoteSucceeded(nominationID string) error {
	v, err := b.pending(nominationID, VoteUnvoting)
	if err != nil {
		return err
	}
	v.Selected = ""
	v.Saved = ""
	v.Status = VoteNone
	b.confirm(nominationID)
	return nil
}

// UnvoteFailed возвращает голос в Locked.
func (b *Board) UnvoteFailed(nominationID string) error {
	v, err := b.pending(nominationID, VoteUnvoting)
	if err != nil {
		return err
	}
	v.Status = VoteLocked
	return nil
}

// Revision возвращает номер последнего подтверждённого изменения.
func (b *Board) Revision() uint64 { return b.revision }

func (b *Board) confirm(nominationID string) {
	b.revision++
	b.confirmed[nominationID] = b.revision
}

// Reconcile применяет голоса с сервера (номинация → кандидат).
// Незавершённый локальный выбор сохраняется, если политика позволяет его сохранить.
// Возвращает номинации из ответа сервера, которых нет в бюллетене или чей кандидат неизвестен.
func (b *Board) Reconcile(server map[string]string) []string {
	return b.ReconcileSince(server, b.revision)
}

// ReconcileSince работает как Reconcile для ответа, запрошенного при ревизии since.
// Номинации, изменённые после since, не трогаются: ответ сервера по ним устарел.
func (b *Board) ReconcileSince(server map[string]string, since uint64) []string {
	var dropped []string
	valid := make(map[string]string, len(server))
	for nomID, candID := range server {
		if !b.ballot.HasCandidate(nomID, candID) {
			dropped = append(dropped, nomID)
			continue
		}
		valid[nomID] = candID
	}
	sort.Strings(dropped)
	for nomID, v := range b.votes {
		if b.confirmed[nomID] > since {
			continue
		}
		saved := valid[nomID]
		v.Saved = saved
		if v.Busy() {
			continue
		}
		if saved == "" {
			if v.Status == VoteLocked {
				v.Selected = ""
				v.Status = VoteNone
			}
			continue
		}
		if v.Status == VoteSelected && v.Selected != saved && b.policy == config.VotePolicyChangeable {
			continue
		}
		v.Selected = saved
		v.Status = VoteLocked
	}
	return dropped
}

// Reset сбрасывает все голоса (выход из аккаунта).
func (b *Board) Reset() {
	for _, v := range b.votes {
		v.Selected = ""
		v.Saved = ""
		v.Status = VoteNone
	}
}

func (b *Board) pending(nominationID string, want VoteStatus) (*NominationVote, error) {
	v, ok := b.votes[nominationID]
	if !ok {
		return nil, ErrUnknownNomination
	}
	if v.Status != want {
		return nil, ErrUnexpectedResult
	}
	return v, nil
}
