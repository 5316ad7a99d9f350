package ui

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/logging"
	"bezdarei/client/internal/state"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Options описывает параметры инициализации UI Manager.
type Options struct {
	AppID    string
	AppName  string
	Logger   *logging.Logger
	Dispatch func(state.Event) error
	// App позволяет подставить готовое fyne-приложение (в тестах).
	App fyne.App
}

// Manager управляет окном Fyne и связывает его со state machine.
type Manager struct {
	app      fyne.App
	appName  string
	logger   *logging.Logger
	dispatch func(state.Event) error

	win         fyne.Window
	userLabel   *widget.Label
	statusLabel *widget.Label
	spinner     *widget.ProgressBarInfinite
	loginBtn    *widget.Button
	cancelBtn   *widget.Button
	logoutBtn   *widget.Button
	refreshBtn  *widget.Button
	exitBtn     *widget.Button
	cardsBox    *fyne.Container
	cards       map[string]*nominationCard

	updateCh     chan uiSnapshot
	stopCh       chan struct{}
	runOnce      sync.Once
	shutdownOnce sync.Once
	loopExited   atomic.Bool
	wg           sync.WaitGroup
}

// nominationCard: карточка номинации с вариантами и кнопками.
type nominationCard struct {
	id         string
	card       *widget.Card
	radio      *widget.RadioGroup
	status     *widget.Label
	saveBtn    *widget.Button
	unvoteBtn  *widget.Button
	labels     []string
	candidates []ballot.Candidate
	suppress   bool
}

// NewManager создаёт новый UI Manager.
func NewManager(opts Options) *Manager {
	appID := strings.TrimSpace(opts.AppID)
	if appID == "" {
		appID = "bezdarei.award"
	}
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = "Bezdarei Award"
	}
	fyneApp := opts.App
	if fyneApp == nil {
		fyneApp = fyneapp.NewWithID(appID)
	}
	fyneApp.Settings().SetTheme(newAwardTheme())
	m := &Manager{
		app:      fyneApp,
		appName:  name,
		logger:   opts.Logger,
		dispatch: opts.Dispatch,
		cards:    make(map[string]*nominationCard),
		updateCh: make(chan uiSnapshot, 16),
		stopCh:   make(chan struct{}),
	}
	m.buildMainWindow()
	return m
}

// Start запускает фоновую goroutine, применяющую снимки состояния.
func (m *Manager) Start() {
	m.runOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.processUpdates()
		}()
	})
}

// RunMainLoop блокирует текущую горутину до завершения цикла Fyne.
func (m *Manager) RunMainLoop() {
	if m.app == nil {
		return
	}
	m.app.Run()
	m.loopExited.Store(true)
}

// SetOnStopped регистрирует обработчик остановки fyne-приложения.
func (m *Manager) SetOnStopped(fn func()) {
	if m.app == nil || fn == nil {
		return
	}
	m.app.Lifecycle().SetOnStopped(fn)
}

// Quit останавливает обновления и закрывает Fyne-приложение.
func (m *Manager) Quit() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.callOnUI(func() {
			if m.win != nil {
				m.win.Close()
			}
			if m.app != nil {
				m.app.Quit()
			}
		})
	})
}

// WaitAsync ждёт завершения фоновых UI goroutine.
func (m *Manager) WaitAsync(timeout time.Duration) bool {
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

// Open открывает адрес в системном браузере средствами fyne.
func (m *Manager) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("ui: only http and https urls are supported")
	}
	return m.app.OpenURL(u)
}

// ShowMainWindow отображает главное окно.
func (m *Manager) ShowMainWindow(_ *state.AppContext) {
	m.callOnUI(func() {
		if m.win != nil {
			m.win.Show()
			m.win.RequestFocus()
		}
	})
}

// UpdateUI передаёт снимок состояния UI в безопасную для Fyne goroutine.
func (m *Manager) UpdateUI(ctx *state.AppContext) {
	if ctx == nil {
		return
	}
	snap := buildSnapshot(ctx)
	select {
	case <-m.stopCh:
		return
	case m.updateCh <- snap:
	default:
		select {
		case <-m.updateCh:
		default:
		}
		m.updateCh <- snap
	}
}

// ShowModalError отображает модальное окно ошибки.
func (m *Manager) ShowModalError(info *state.ErrorInfo) {
	if info == nil {
		return
	}
	m.callOnUI(func() {
		message := info.UserMessage
		if message == "" {
			message = "Произошла ошибка"
		}
		dialog.ShowError(errors.New(message), m.win)
	})
}

// ShowTransientNotice отображает краткое уведомление.
func (m *Manager) ShowTransientNotice(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	m.callOnUI(func() {
		dialog.ShowInformation(m.appName, message, m.win)
	})
}

func (m *Manager) processUpdates() {
	for {
		select {
		case <-m.stopCh:
			return
		case snap := <-m.updateCh:
			m.callOnUI(func() { m.render(snap) })
		}
	}
}

// render применяет снимок; вызывается только в goroutine Fyne.
func (m *Manager) render(snap uiSnapshot) {
	m.userLabel.SetText(snap.UserLine)
	m.statusLabel.SetText(snap.UI.StatusText)
	m.updateHeaderButtons(snap)
	if snap.UI.IsLoading {
		m.spinner.Show()
		m.spinner.Start()
	} else {
		m.spinner.Stop()
		m.spinner.Hide()
	}
	for _, view := range snap.Nominations {
		m.ensureCard(view).apply(view)
	}
}

func (m *Manager) updateHeaderButtons(snap uiSnapshot) {
	setVisible(m.loginBtn, snap.UI.IsLoginVisible)
	setEnabled(m.loginBtn, snap.UI.CanLogin)
	authInProgress := snap.State == state.StateAuthInProgress
	setVisible(m.cancelBtn, authInProgress)
	setEnabled(m.cancelBtn, authInProgress)
	setVisible(m.logoutBtn, snap.UI.CanLogout)
	setEnabled(m.logoutBtn, snap.UI.CanLogout)
	setVisible(m.refreshBtn, snap.UI.CanLogout)
	setEnabled(m.refreshBtn, snap.UI.CanRefresh)
}

func (m *Manager) buildMainWindow() {
	win := m.app.NewWindow(m.appName)
	win.Resize(fyne.NewSize(640, 720))

	title := widget.NewLabelWithStyle(m.appName, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	m.userLabel = widget.NewLabel("Вы не вошли")
	m.statusLabel = widget.NewLabel("")
	m.statusLabel.Wrapping = fyne.TextWrapWord
	m.spinner = widget.NewProgressBarInfinite()
	m.spinner.Hide()

	m.loginBtn = widget.NewButton("Войти через Twitch", func() { m.sendSimpleEvent(state.EventUIClickLogin) })
	m.loginBtn.Importance = widget.HighImportance
	m.cancelBtn = widget.NewButton("Отменить вход", func() { m.sendSimpleEvent(state.EventUICancelLogin) })
	m.cancelBtn.Hide()
	m.logoutBtn = widget.NewButton("Выйти", func() { m.sendSimpleEvent(state.EventUIClickLogout) })
	m.logoutBtn.Hide()
	m.refreshBtn = widget.NewButton("Обновить", func() { m.sendSimpleEvent(state.EventUIClickRefresh) })
	m.refreshBtn.Hide()
	m.exitBtn = widget.NewButton("Закрыть", func() { m.sendSimpleEvent(state.EventUIExit) })

	header := container.NewVBox(
		container.NewHBox(title, layout.NewSpacer(), m.userLabel),
		container.NewHBox(m.loginBtn, m.cancelBtn, m.refreshBtn, m.logoutBtn, layout.NewSpacer(), m.exitBtn),
		m.statusLabel,
		m.spinner,
		widget.NewSeparator(),
	)
	m.cardsBox = container.NewVBox()
	win.SetContent(container.NewPadded(container.NewBorder(header, nil, nil, nil, container.NewVScroll(m.cardsBox))))
	win.SetCloseIntercept(func() {
		m.sendSimpleEvent(state.EventUIExit)
	})
	m.win = win
}

func (m *Manager) ensureCard(view nominationView) *nominationCard {
	if c, ok := m.cards[view.ID]; ok {
		return c
	}
	c := &nominationCard{
		id:         view.ID,
		labels:     candidateLabels(view.Candidates),
		candidates: view.Candidates,
	}
	c.radio = widget.NewRadioGroup(c.labels, func(label string) { m.handleCandidateChanged(c, label) })
	c.radio.Required = true
	c.status = widget.NewLabel("")
	c.saveBtn = widget.NewButton("Голосовать", func() { m.sendNominationEvent(state.EventUIClickSave, c.id) })
	c.saveBtn.Importance = widget.HighImportance
	c.saveBtn.Disable()
	c.unvoteBtn = widget.NewButton("Отменить голос", func() { m.sendNominationEvent(state.EventUIClickUnvote, c.id) })
	c.unvoteBtn.Hide()

	body := container.NewVBox(c.radio)
	if links := candidateLinks(view.Candidates); len(links) > 0 {
		body.Add(widget.NewLabelWithStyle("Подробнее:", fyne.TextAlignLeading, fyne.TextStyle{Italic: true}))
		for _, link := range links {
			body.Add(link)
		}
	}
	body.Add(c.status)
	body.Add(container.NewHBox(c.saveBtn, c.unvoteBtn))
	c.card = widget.NewCard(view.Title, "", body)

	m.cards[view.ID] = c
	m.cardsBox.Add(c.card)
	return c
}

func (c *nominationCard) apply(view nominationView) {
	c.suppress = true
	c.radio.SetSelected(c.labelFor(view.Selected))
	c.suppress = false
	if view.CanSelect {
		c.radio.Enable()
	} else {
		c.radio.Disable()
	}
	c.status.SetText(nominationStatusText(view))
	setEnabled(c.saveBtn, view.CanSave)
	setVisible(c.unvoteBtn, view.ShowUnvote && view.Phase == state.PhaseLocked)
	setEnabled(c.unvoteBtn, view.CanUnvote)
}

func (c *nominationCard) labelFor(candidateID string) string {
	for i, cand := range c.candidates {
		if cand.ID == candidateID {
			return c.labels[i]
		}
	}
	return ""
}

func (c *nominationCard) candidateFor(label string) (string, bool) {
	for i, l := range c.labels {
		if l == label {
			return c.candidates[i].ID, true
		}
	}
	return "", false
}

func (m *Manager) handleCandidateChanged(c *nominationCard, label string) {
	if c.suppress {
		return
	}
	candidateID, ok := c.candidateFor(label)
	if !ok {
		return
	}
	payload := state.CandidatePayload{NominationID: c.id, CandidateID: candidateID}
	m.dispatchEvent(state.Event{Type: state.EventUISelectCandidate, Payload: payload, TS: time.Now()})
}

func candidateLinks(candidates []ballot.Candidate) []fyne.CanvasObject {
	var links []fyne.CanvasObject
	for _, cand := range candidates {
		raw := cand.Link()
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		links = append(links, widget.NewHyperlink(cand.Title, u))
	}
	return links
}

func (m *Manager) sendNominationEvent(t state.EventType, nominationID string) {
	payload := state.NominationPayload{NominationID: nominationID}
	m.dispatchEvent(state.Event{Type: t, Payload: payload, TS: time.Now()})
}

func (m *Manager) sendSimpleEvent(t state.EventType) {
	m.dispatchEvent(state.Event{Type: t, TS: time.Now()})
}

func (m *Manager) dispatchEvent(evt state.Event) {
	if m.dispatch == nil {
		return
	}
	if err := m.dispatch(evt); err != nil && m.logger != nil {
		m.logger.Errorf("ui dispatch %s failed: %v", evt.Type, err)
	}
}

func (m *Manager) callOnUI(fn func()) {
	// после выхода из цикла Fyne некому выполнить fn
	if m.app == nil || fn == nil || m.loopExited.Load() {
		return
	}
	if drv := m.app.Driver(); drv != nil {
		drv.DoFromGoroutine(fn, true)
		return
	}
	fn()
}

func setEnabled(btn *widget.Button, enabled bool) {
	if enabled {
		btn.Enable()
	} else {
		btn.Disable()
	}
}

func setVisible(obj fyne.CanvasObject, visible bool) {
	if visible {
		obj.Show()
	} else {
		obj.Hide()
	}
}
