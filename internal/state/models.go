package state

import (
	"time"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/config"
)

// ErrorKind описывает тип ошибки, отображаемой пользователю и используемой для логики состояния.
type ErrorKind string

const (
	ErrorKindNetworkUnavailable ErrorKind = "NetworkUnavailable"
	ErrorKindAuthFailed         ErrorKind = "AuthFailed"
	ErrorKindVoteRejected       ErrorKind = "VoteRejected"
	ErrorKindUnvoteUnsupported  ErrorKind = "UnvoteUnsupported"
	ErrorKindConfigFailed       ErrorKind = "ConfigFailed"
	ErrorKindUnknown            ErrorKind = "Unknown"
)

// User: текущий пользователь по данным /api/me.
type User struct {
	DisplayName  string
	Login        string
	TwitchUserID string
}

// Label возвращает строку вида "Имя (@login)".
func (u User) Label() string {
	if u.DisplayName == "" {
		return "@" + u.Login
	}
	return u.DisplayName + " (@" + u.Login + ")"
}

// ErrorInfo описывает ошибку для UI и логов.
type ErrorInfo struct {
	Kind             ErrorKind
	UserMessage      string
	TechnicalMessage string
	OccurredAt       time.Time
}

// UIState хранит минимально необходимую информацию для управления UI.
type UIState struct {
	IsLoginVisible bool
	IsLoading      bool
	CanLogin       bool
	CanLogout      bool
	CanRefresh     bool
	StatusText     string
}

// AppContext содержит всё состояние приложения. Владеет им только event-loop Machine.
type AppContext struct {
	Config    *config.Config
	Ballot    *ballot.Ballot
	Token     string
	User      *User
	Votes     *Board
	LastError *ErrorInfo
	UI        UIState
	State     State

	// generation растёт при каждом входе и выходе; ответы старых запросов отбрасываются.
	generation uint64
	// loadRevision: ревизия табло на момент запроса профиля.
	loadRevision uint64
}

// NewAppContext создаёт AppContext со свежим табло голосов.
func NewAppContext(cfg *config.Config, b *ballot.Ballot, token string) *AppContext {
	policy := config.VotePolicyLocked
	allowUnvote := false
	if cfg != nil {
		policy = cfg.VotePolicy
		allowUnvote = cfg.AllowUnvote
	}
	return &AppContext{
		Config: cfg,
		Ballot: b,
		Token:  token,
		Votes:  NewBoard(b, policy, allowUnvote),
		State:  StateAppStarting,
	}
}

// Generation возвращает текущее поколение сессии.
func (ctx *AppContext) Generation() uint64 {
	return ctx.generation
}

// Authenticated сообщает, есть ли у клиента токен и загружен ли пользователь.
func (ctx *AppContext) Authenticated() bool {
	return ctx.Token != "" && ctx.User != nil
}

// Phase сводит состояние приложения и номинации к одной из четырёх фаз.
func (ctx *AppContext) Phase(nominationID string) Phase {
	if !ctx.Authenticated() {
		return PhaseUnauthenticated
	}
	nv, ok := ctx.Votes.Get(nominationID)
	if !ok {
		return PhaseUnvoted
	}
	switch nv.Status {
	case VoteSelected, VoteSaving:
		return PhaseSelecting
	case VoteLocked, VoteUnvoting:
		return PhaseLocked
	default:
		return PhaseUnvoted
	}
}

// Phase: пользовательская фаза голосования по номинации.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseUnvoted         Phase = "authenticated-unvoted"
	PhaseSelecting       Phase = "authenticated-selecting"
	PhaseLocked          Phase = "authenticated-locked"
)
