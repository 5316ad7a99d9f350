package state

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"bezdarei/client/internal/logging"
)

// State описывает состояние конечного автомата приложения.
type State string

const (
	StateAppStarting     State = "AppStarting"
	StateUnauthenticated State = "Unauthenticated"
	StateAuthInProgress  State = "AuthInProgress"
	StateLoadingProfile  State = "LoadingProfile"
	StateReady           State = "Ready"
	StateError           State = "Error"
	StateExiting         State = "Exiting"
)

// EventType представляет собой тип события из очереди state machine.
type EventType string

const (
	EventUILaunch          EventType = "UI_LAUNCH"
	EventUIClickLogin      EventType = "UI_CLICK_LOGIN"
	EventUICancelLogin     EventType = "UI_CANCEL_LOGIN"
	EventUIClickLogout     EventType = "UI_CLICK_LOGOUT"
	EventUISelectCandidate EventType = "UI_SELECT_CANDIDATE"
	EventUIClickSave       EventType = "UI_CLICK_SAVE"
	EventUIClickUnvote     EventType = "UI_CLICK_UNVOTE"
	EventUIClickRefresh    EventType = "UI_CLICK_REFRESH"
	EventUIExit            EventType = "UI_EXIT"

	EventSysTokenReceived EventType = "SYS_TOKEN_RECEIVED"
	EventSysAuthFailure   EventType = "SYS_AUTH_FAILURE"
	EventSysProfileLoaded EventType = "SYS_PROFILE_LOADED"
	EventSysProfileFailed EventType = "SYS_PROFILE_FAILURE"
	EventSysVoteSaved     EventType = "SYS_VOTE_SAVED"
	EventSysVoteFailed    EventType = "SYS_VOTE_FAILED"
	EventSysUnvoteDone    EventType = "SYS_UNVOTE_DONE"
	EventSysUnvoteFailed  EventType = "SYS_UNVOTE_FAILED"
)

const (
	noticeLoginFirst     = "Сначала войдите через Twitch"
	noticeVoteSaved      = "Голос засчитан"
	noticeVoteRemoved    = "Голос отменён"
	noticeSessionExpired = "Сессия истекла. Войдите через Twitch снова"
	noticeNetworkError   = "Ошибка сети"
)

// Event инкапсулирует событие очереди и произвольную полезную нагрузку.
type Event struct {
	Type    EventType
	Payload any
	TS      time.Time
}

// CandidatePayload передаёт выбор кандидата из UI.
type CandidatePayload struct {
	NominationID string
	CandidateID  string
}

// NominationPayload адресует кнопку номинации или ответ воркера по ней.
type NominationPayload struct {
	NominationID string
	Generation   uint64
}

// TokenPayload содержит токен, полученный после входа.
type TokenPayload struct {
	Token string
}

// ProfilePayload содержит пользователя и его голоса.
type ProfilePayload struct {
	User       User
	Votes      map[string]string
	Generation uint64
}

// ScenarioResultPayload описывает ошибку фоновой операции.
type ScenarioResultPayload struct {
	Kind             ErrorKind
	Message          string
	TechnicalMessage string
	NominationID     string
	Generation       uint64
}

// Callbacks содержит функции, вызываемые state machine для побочных эффектов.
// Start*-колбэки выполняются в фоне и сообщают результат событиями SYS_*.
type Callbacks struct {
	StartLogin          func()
	CancelLogin         func()
	LoadProfile         func(token string, generation uint64)
	CastVote            func(token, nominationID, candidateID string, generation uint64)
	RemoveVote          func(token, nominationID string, generation uint64)
	ForgetToken         func()
	CleanupAndExit      func(ctx *AppContext)
	ShowMainWindow      func(ctx *AppContext)
	UpdateUI            func(ctx *AppContext)
	ShowModalError      func(info *ErrorInfo)
	ShowTransientNotice func(message string)
}

// Machine инкапсулирует event-loop и текущее состояние приложения.
type Machine struct {
	ctx       *AppContext
	callbacks Callbacks
	logger    *logging.Logger
	events    chan Event
	priority  chan Event
	done      chan struct{}
	stopped   atomic.Bool
	loopOnce  sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// ErrMachineStopped возвращается при попытке отправить событие после остановки петли.
var ErrMachineStopped = errors.New("state machine stopped")

// NewMachine создаёт новый state machine в состоянии AppStarting.
func NewMachine(ctx *AppContext, logger *logging.Logger, callbacks Callbacks) *Machine {
	return &Machine{
		ctx:       ctx,
		callbacks: callbacks,
		logger:    logger,
		events:    make(chan Event, 64),
		priority:  make(chan Event, 8),
		done:      make(chan struct{}),
	}
}

// Start запускает event-loop в отдельной горутине.
func (m *Machine) Start() {
	m.loopOnce.Do(func() {
		go m.loopSafely()
	})
}

// Stop завершает event-loop.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.done)
	})
}

// WaitAsync ждёт завершения фоновых задач, запущенных state machine.
func (m *Machine) WaitAsync(timeout time.Duration) bool {
	if m == nil {
		return true
	}
	if timeout <= 0 {
		m.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Dispatch отправляет событие в очередь state machine.
func (m *Machine) Dispatch(evt Event) error {
	if m.stopped.Load() {
		return ErrMachineStopped
	}
	m.logger.Debugf("event queued: %s", evt.Type)
	ch := m.events
	if m.isExitEvent(evt.Type) {
		ch = m.priority
	}
	select {
	case <-m.done:
		return ErrMachineStopped
	case ch <- evt:
		return nil
	}
}

func (m *Machine) loop() {
	for {
		select {
		case <-m.done:
			return
		case evt := <-m.priority:
			m.handleEvent(evt)
			continue
		default:
		}

		select {
		case <-m.done:
			return
		case evt := <-m.priority:
			m.handleEvent(evt)
		case evt := <-m.events:
			m.handleEvent(evt)
		}
	}
}

func (m *Machine) loopSafely() {
	defer m.logPanic("state loop")
	m.loop()
}

func (m *Machine) handleEvent(evt Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now()
	}
	m.logger.Debugf("event handle: %s state=%s", evt.Type, m.ctx.State)
	if m.isExitEvent(evt.Type) {
		m.transition(StateExiting)
		m.invokeCleanup()
		return
	}

	switch m.ctx.State {
	case StateAppStarting:
		m.handleAppStarting(evt)
	case StateUnauthenticated:
		m.handleUnauthenticated(evt)
	case StateAuthInProgress:
		m.handleAuthInProgress(evt)
	case StateLoadingProfile:
		m.handleLoadingProfile(evt)
	case StateReady:
		m.handleReady(evt)
	case StateError:
		m.handleErrorState(evt)
	case StateExiting:
		// игнор
	default:
		m.logger.Debugf("state machine: unknown state %s", m.ctx.State)
	}
}

func (m *Machine) handleAppStarting(evt Event) {
	switch evt.Type {
	case EventUILaunch:
		m.invokeShowMain()
		if m.ctx.Token != "" {
			m.beginLoadProfile()
			return
		}
		m.enterUnauthenticated()
	default:
		m.logger.Debugf("appStarting: ignored %s", evt.Type)
	}
}

func (m *Machine) handleUnauthenticated(evt Event) {
	switch evt.Type {
	case EventUIClickLogin:
		m.ctx.UI.StatusText = "Завершите вход в открывшемся браузере"
		m.transition(StateAuthInProgress)
		m.invokeStartLogin()
	case EventUISelectCandidate, EventUIClickSave, EventUIClickUnvote:
		m.showTransient(noticeLoginFirst)
		m.refreshUI()
	default:
		m.logger.Debugf("unauthenticated: ignored %s", evt.Type)
	}
}

func (m *Machine) handleAuthInProgress(evt Event) {
	switch evt.Type {
	case EventSysTokenReceived:
		payload, _ := evt.Payload.(TokenPayload)
		if payload.Token == "" {
			m.enterUnauthenticated()
			m.showError(ErrorKindAuthFailed, "Ошибка авторизации", "empty token")
			return
		}
		m.ctx.Token = payload.Token
		m.ctx.generation++
		m.beginLoadProfile()
	case EventSysAuthFailure:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		m.enterUnauthenticated()
		m.showError(orKind(payload.Kind, ErrorKindAuthFailed), orText(payload.Message, "Ошибка авторизации"), orText(payload.TechnicalMessage, "auth failed"))
	case EventUICancelLogin:
		m.invokeCancelLogin()
		m.enterUnauthenticated()
	case EventUISelectCandidate, EventUIClickSave, EventUIClickUnvote:
		m.showTransient(noticeLoginFirst)
		m.refreshUI()
	default:
		m.logger.Debugf("auth: ignored %s", evt.Type)
	}
}

func (m *Machine) handleLoadingProfile(evt Event) {
	if m.handleVoteResult(evt) {
		return
	}
	switch evt.Type {
	case EventSysProfileLoaded:
		payload, _ := evt.Payload.(ProfilePayload)
		if !m.current(payload.Generation) {
			return
		}
		user := payload.User
		m.ctx.User = &user
		m.ctx.LastError = nil
		if dropped := m.ctx.Votes.ReconcileSince(payload.Votes, m.ctx.loadRevision); len(dropped) > 0 {
			m.logger.Errorf("worker returned votes outside the ballot: %v", dropped)
		}
		m.ctx.UI.StatusText = ""
		m.transition(StateReady)
	case EventSysProfileFailed:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		if !m.current(payload.Generation) {
			return
		}
		if payload.Kind == ErrorKindAuthFailed {
			m.expireSession()
			return
		}
		m.enterError(orKind(payload.Kind, ErrorKindUnknown), orText(payload.Message, "Не удалось загрузить профиль"), orText(payload.TechnicalMessage, "profile load failed"))
	case EventUIClickLogout:
		m.logout()
	default:
		m.logger.Debugf("loadingProfile: ignored %s", evt.Type)
	}
}

func (m *Machine) handleReady(evt Event) {
	if m.handleVoteResult(evt) {
		return
	}
	switch evt.Type {
	case EventUISelectCandidate:
		payload, _ := evt.Payload.(CandidatePayload)
		if err := m.ctx.Votes.Select(payload.NominationID, payload.CandidateID); err != nil {
			m.logger.Debugf("select %s/%s rejected: %v", payload.NominationID, payload.CandidateID, err)
			m.showTransient(voteErrorMessage(err))
		}
		m.refreshUI()
	case EventUIClickSave:
		payload, _ := evt.Payload.(NominationPayload)
		candidateID, err := m.ctx.Votes.BeginSave(payload.NominationID)
		if err != nil {
			m.showTransient(voteErrorMessage(err))
			return
		}
		m.refreshUI()
		m.invokeCastVote(payload.NominationID, candidateID)
	case EventUIClickUnvote:
		payload, _ := evt.Payload.(NominationPayload)
		if err := m.ctx.Votes.BeginUnvote(payload.NominationID); err != nil {
			m.showTransient(voteErrorMessage(err))
			return
		}
		m.refreshUI()
		m.invokeRemoveVote(payload.NominationID)
	case EventUIClickRefresh:
		m.beginLoadProfile()
	case EventUIClickLogout:
		m.logout()
	default:
		m.logger.Debugf("ready: ignored %s", evt.Type)
	}
}

func (m *Machine) handleErrorState(evt Event) {
	if m.handleVoteResult(evt) {
		return
	}
	switch evt.Type {
	case EventUIClickRefresh:
		m.beginLoadProfile()
	case EventUIClickLogout:
		m.logout()
	default:
		m.logger.Debugf("error: ignored %s", evt.Type)
	}
}

// handleVoteResult применяет ответы воркера на голосование в любом авторизованном состоянии.
func (m *Machine) handleVoteResult(evt Event) bool {
	switch evt.Type {
	case EventSysVoteSaved:
		payload, _ := evt.Payload.(NominationPayload)
		if m.current(payload.Generation) && m.applyBoard(m.ctx.Votes.SaveSucceeded(payload.NominationID)) {
			m.showTransient(noticeVoteSaved)
		}
	case EventSysVoteFailed:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		if m.current(payload.Generation) && m.applyBoard(m.ctx.Votes.SaveFailed(payload.NominationID)) {
			m.reportVoteFailure(payload)
		}
	case EventSysUnvoteDone:
		payload, _ := evt.Payload.(NominationPayload)
		if m.current(payload.Generation) && m.applyBoard(m.ctx.Votes.UnvoteSucceeded(payload.NominationID)) {
			m.showTransient(noticeVoteRemoved)
		}
	case EventSysUnvoteFailed:
		payload, _ := evt.Payload.(ScenarioResultPayload)
		if m.current(payload.Generation) && m.applyBoard(m.ctx.Votes.UnvoteFailed(payload.NominationID)) {
			m.reportVoteFailure(payload)
		}
	default:
		return false
	}
	return true
}

func (m *Machine) applyBoard(err error) bool {
	if err != nil {
		m.logger.Errorf("vote result dropped: %v", err)
		return false
	}
	m.refreshUI()
	return true
}

func (m *Machine) reportVoteFailure(payload ScenarioResultPayload) {
	m.logger.Errorf("vote request for %s failed: %s", payload.NominationID, payload.TechnicalMessage)
	if payload.Kind == ErrorKindAuthFailed {
		m.expireSession()
		return
	}
	m.showTransient(orText(payload.Message, noticeNetworkError))
}

func (m *Machine) beginLoadProfile() {
	m.ctx.UI.StatusText = "Загружаем профиль…"
	m.transition(StateLoadingProfile)
	m.ctx.loadRevision = m.ctx.Votes.Revision()
	m.invokeLoadProfile()
}

func (m *Machine) enterUnauthenticated() {
	m.ctx.User = nil
	m.ctx.UI.StatusText = "Войдите через Twitch, чтобы голосовать"
	m.transition(StateUnauthenticated)
}

// logout забывает токен и сбрасывает голоса; ответы на старые запросы отбрасываются.
func (m *Machine) logout() {
	m.invokeForgetToken()
	m.ctx.Token = ""
	m.ctx.generation++
	m.ctx.LastError = nil
	m.ctx.Votes.Reset()
	m.enterUnauthenticated()
}

func (m *Machine) expireSession() {
	m.logout()
	m.showTransient(noticeSessionExpired)
}

func (m *Machine) current(generation uint64) bool {
	if generation != m.ctx.generation {
		m.logger.Debugf("stale result dropped: generation %d, current %d", generation, m.ctx.generation)
		return false
	}
	return true
}

func (m *Machine) transition(next State) {
	if m.ctx.State == next {
		m.refreshUI()
		return
	}
	prev := m.ctx.State
	m.ctx.State = next
	m.logger.Debugf("state transition %s → %s", prev, next)
	m.updateUIForState(next)
}

func (m *Machine) updateUIForState(state State) {
	ui := &m.ctx.UI
	ui.IsLoginVisible = false
	ui.IsLoading = false
	ui.CanLogin = false
	ui.CanLogout = false
	ui.CanRefresh = false
	switch state {
	case StateUnauthenticated:
		ui.IsLoginVisible = true
		ui.CanLogin = true
	case StateAuthInProgress:
		ui.IsLoginVisible = true
		ui.IsLoading = true
	case StateLoadingProfile:
		ui.IsLoading = true
		ui.CanLogout = true
	case StateReady, StateError:
		ui.CanLogout = true
		ui.CanRefresh = true
	}
	m.refreshUI()
}

func (m *Machine) enterError(kind ErrorKind, userMessage, technical string) {
	m.ctx.UI.StatusText = userMessage
	m.transition(StateError)
	m.showError(kind, userMessage, technical)
}

func (m *Machine) showError(kind ErrorKind, userMessage, technical string) {
	info := &ErrorInfo{
		Kind:             kind,
		UserMessage:      userMessage,
		TechnicalMessage: technical,
		OccurredAt:       time.Now(),
	}
	m.ctx.LastError = info
	m.logger.Errorf("%s: %s (%s)", kind, userMessage, technical)
	if m.callbacks.ShowModalError != nil {
		m.callbacks.ShowModalError(info)
	}
}

func (m *Machine) invokeStartLogin() {
	if m.callbacks.StartLogin != nil {
		m.runAsync(m.callbacks.StartLogin)
	}
}

func (m *Machine) invokeCancelLogin() {
	if m.callbacks.CancelLogin != nil {
		m.callbacks.CancelLogin()
	}
}

func (m *Machine) invokeLoadProfile() {
	if m.callbacks.LoadProfile != nil {
		token, gen := m.ctx.Token, m.ctx.generation
		m.runAsync(func() { m.callbacks.LoadProfile(token, gen) })
	}
}

func (m *Machine) invokeCastVote(nominationID, candidateID string) {
	if m.callbacks.CastVote != nil {
		token, gen := m.ctx.Token, m.ctx.generation
		m.runAsync(func() { m.callbacks.CastVote(token, nominationID, candidateID, gen) })
	}
}

func (m *Machine) invokeRemoveVote(nominationID string) {
	if m.callbacks.RemoveVote != nil {
		token, gen := m.ctx.Token, m.ctx.generation
		m.runAsync(func() { m.callbacks.RemoveVote(token, nominationID, gen) })
	}
}

func (m *Machine) invokeForgetToken() {
	if m.callbacks.ForgetToken != nil {
		m.runAsync(m.callbacks.ForgetToken)
	}
}

func (m *Machine) runAsync(fn func()) {
	if fn == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.logPanic("async task")
		fn()
	}()
}

func (m *Machine) logPanic(scope string) {
	if r := recover(); r != nil {
		m.logger.Errorf("panic in %s: %v\n%s", scope, r, debug.Stack())
		panic(r)
	}
}

func (m *Machine) invokeCleanup() {
	if m.callbacks.CleanupAndExit != nil {
		m.callbacks.CleanupAndExit(m.ctx)
		return
	}
	m.Stop()
}

func (m *Machine) invokeShowMain() {
	if m.callbacks.ShowMainWindow != nil {
		m.callbacks.ShowMainWindow(m.ctx)
	}
}

func (m *Machine) showTransient(message string) {
	if m.callbacks.ShowTransientNotice != nil {
		m.callbacks.ShowTransientNotice(message)
	} else {
		m.logger.Infof("notice: %s", message)
	}
}

func (m *Machine) refreshUI() {
	if m.callbacks.UpdateUI != nil {
		m.callbacks.UpdateUI(m.ctx)
	}
}

func (m *Machine) isExitEvent(t EventType) bool {
	return t == EventUIExit
}

func voteErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrVoteLocked):
		return "Голос уже сохранён и не может быть изменён"
	case errors.Is(err, ErrBusy):
		return "Подождите, запрос ещё выполняется"
	case errors.Is(err, ErrNothingSelected):
		return "Выберите кандидата"
	case errors.Is(err, ErrUnvoteDisabled):
		return "Отмена голоса недоступна"
	case errors.Is(err, ErrNotLocked):
		return "В этой номинации нет сохранённого голоса"
	case errors.Is(err, ErrUnknownCandidate), errors.Is(err, ErrUnknownNomination):
		return "Такого кандидата нет в бюллетене"
	default:
		return "Не удалось изменить выбор"
	}
}

func orKind(kind, fallback ErrorKind) ErrorKind {
	if kind == "" {
		return fallback
	}
	return kind
}

func orText(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}
