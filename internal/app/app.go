package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/browser"
	"bezdarei/client/internal/config"
	"bezdarei/client/internal/logging"
	"bezdarei/client/internal/session"
	"bezdarei/client/internal/state"
	"bezdarei/client/internal/workerclient"
)

// View: всё, что state machine показывает пользователю. Реализуется ui.Manager.
type View interface {
	ShowMainWindow(ctx *state.AppContext)
	UpdateUI(ctx *state.AppContext)
	ShowModalError(info *state.ErrorInfo)
	ShowTransientNotice(message string)
	Quit()
}

// URLOpener открывает страницу входа в браузере.
type URLOpener interface {
	Open(rawURL string) error
}

// Options задаёт зависимости Application.
type Options struct {
	View       View
	Opener     URLOpener
	Ballot     *ballot.Ballot
	HTTPClient *http.Client
}

// Application связывает state machine, воркер и хранилище сессии.
type Application struct {
	cfg     *config.Config
	logger  *logging.Logger
	worker  *workerclient.Client
	store   *session.Store
	opener  URLOpener
	view    View
	machine *state.Machine
	ctx     *state.AppContext

	loginMu     sync.Mutex
	loginSeq    uint64
	loginCancel context.CancelFunc

	shutdown  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	stopOnce  sync.Once
}

// New создаёт Application и настраивает state machine callbacks.
func New(cfg *config.Config, logger *logging.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if opts.View == nil {
		return nil, fmt.Errorf("view is nil")
	}
	worker, err := workerclient.New(cfg.WorkerURL, workerclient.Options{HTTPClient: opts.HTTPClient, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("init worker client: %w", err)
	}
	b := opts.Ballot
	if b == nil {
		if b, err = ballot.Load(cfg.BallotFile); err != nil {
			return nil, fmt.Errorf("load ballot: %w", err)
		}
	}
	store, err := session.NewStore(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	token, err := store.Load()
	if err != nil {
		logger.Errorf("stored session ignored: %v", err)
		token = ""
	}
	opener := opts.Opener
	if opener == nil {
		opener = browser.New()
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	app := &Application{
		cfg:       cfg,
		logger:    logger,
		worker:    worker,
		store:     store,
		opener:    opener,
		view:      opts.View,
		ctx:       state.NewAppContext(cfg, b, token),
		shutdown:  make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	callbacks := state.Callbacks{
		StartLogin:          app.startLogin,
		CancelLogin:         app.cancelLogin,
		LoadProfile:         app.loadProfile,
		CastVote:            app.castVote,
		RemoveVote:          app.removeVote,
		ForgetToken:         app.forgetToken,
		CleanupAndExit:      app.cleanupAndExit,
		ShowMainWindow:      opts.View.ShowMainWindow,
		UpdateUI:            opts.View.UpdateUI,
		ShowModalError:      opts.View.ShowModalError,
		ShowTransientNotice: opts.View.ShowTransientNotice,
	}
	app.machine = state.NewMachine(app.ctx, logger, callbacks)
	return app, nil
}

// Run запускает state machine и инициирует сценарий старта.
func (a *Application) Run() error {
	if a.machine == nil {
		return fmt.Errorf("machine is not initialized")
	}
	a.machine.Start()
	return a.Dispatch(state.Event{Type: state.EventUILaunch, TS: time.Now()})
}

// Stop останавливает фоновые запросы и state machine.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		if a.runCancel != nil {
			a.runCancel()
		}
		if a.machine != nil {
			a.machine.Stop()
			if !a.machine.WaitAsync(3*time.Second) && a.logger != nil {
				a.logger.Errorf("state machine background tasks did not finish before timeout")
			}
		}
		close(a.shutdown)
	})
}

// Dispatch передаёт событие UI в state machine.
func (a *Application) Dispatch(evt state.Event) error {
	if err := a.machine.Dispatch(evt); err != nil {
		a.logger.Errorf("dispatch %s failed: %v", evt.Type, err)
		return err
	}
	return nil
}

// Done возвращает канал, закрывающийся после полной остановки приложения.
func (a *Application) Done() <-chan struct{} {
	return a.shutdown
}

func (a *Application) cleanupAndExit(_ *state.AppContext) {
	a.logger.Infof("state machine requested shutdown")
	a.cancelLogin()
	if a.view != nil {
		a.view.Quit()
	}
	a.Stop()
}
