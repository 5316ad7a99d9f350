package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bezdarei/client/internal/authflow"
	"bezdarei/client/internal/state"
	"bezdarei/client/internal/workerclient"
)

const defaultRequestTimeout = 15 * time.Second

const (
	messageNetwork        = "Ошибка сети"
	messageTimeout        = "Истекло время ожидания ответа сервера"
	messageProfileFailed  = "Не удалось загрузить профиль"
	messageVoteFailed     = "Не удалось сохранить голос"
	messageUnvoteFailed   = "Не удалось отменить голос"
	messageUnvoteDisabled = "Сервер не поддерживает отмену голоса"
)

func (a *Application) startLogin() {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.LoginTimeout)
	a.loginMu.Lock()
	a.loginSeq++
	seq := a.loginSeq
	a.loginCancel = cancel
	a.loginMu.Unlock()
	defer a.finishLogin(seq, cancel)

	token, err := authflow.Login(ctx, a.cfg.CallbackAddr, a.worker.AuthStartURL, a.opener.Open, a.logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Infof("login cancelled")
			return
		}
		a.logger.Errorf("login failed: %v", err)
		a.dispatchEvent(state.EventSysAuthFailure, buildAuthFailurePayload(err))
		return
	}
	if err := a.store.Save(token); err != nil {
		// токен остаётся в памяти до конца сеанса
		a.logger.Errorf("persist session: %v", err)
	}
	a.logger.Infof("login succeeded, token length %d", len(token))
	a.dispatchEvent(state.EventSysTokenReceived, state.TokenPayload{Token: token})
}

// finishLogin освобождает контекст входа; более новый вход не затрагивается.
func (a *Application) finishLogin(seq uint64, cancel context.CancelFunc) {
	cancel()
	a.loginMu.Lock()
	if a.loginSeq == seq {
		a.loginCancel = nil
	}
	a.loginMu.Unlock()
}

func (a *Application) cancelLogin() {
	a.loginMu.Lock()
	cancel := a.loginCancel
	a.loginCancel = nil
	a.loginMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loadProfile запрашивает /api/me и /api/my-votes параллельно.
func (a *Application) loadProfile(token string, generation uint64) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()

	var (
		user  state.User
		votes map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = a.worker.Me(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		votes, err = a.worker.MyVotes(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Errorf("profile load failed: %v", err)
		payload := buildRequestFailurePayload(err, messageProfileFailed)
		payload.Generation = generation
		a.dispatchEvent(state.EventSysProfileFailed, payload)
		return
	}
	a.logger.Infof("profile loaded: %s, %d votes", user.Login, len(votes))
	a.dispatchEvent(state.EventSysProfileLoaded, state.ProfilePayload{User: user, Votes: votes, Generation: generation})
}

func (a *Application) castVote(token, nominationID, candidateID string, generation uint64) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()

	if err := a.worker.Vote(ctx, token, nominationID, candidateID); err != nil {
		payload := buildRequestFailurePayload(err, messageVoteFailed)
		payload.NominationID = nominationID
		payload.Generation = generation
		a.dispatchEvent(state.EventSysVoteFailed, payload)
		return
	}
	a.logger.Infof("vote saved: %s=%s", nominationID, candidateID)
	a.dispatchEvent(state.EventSysVoteSaved, state.NominationPayload{NominationID: nominationID, Generation: generation})
}

func (a *Application) removeVote(token, nominationID string, generation uint64) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()

	if err := a.worker.Unvote(ctx, token, nominationID); err != nil {
		payload := buildRequestFailurePayload(err, messageUnvoteFailed)
		payload.NominationID = nominationID
		payload.Generation = generation
		a.dispatchEvent(state.EventSysUnvoteFailed, payload)
		return
	}
	a.logger.Infof("vote removed: %s", nominationID)
	a.dispatchEvent(state.EventSysUnvoteDone, state.NominationPayload{NominationID: nominationID, Generation: generation})
}

func (a *Application) forgetToken() {
	if err := a.store.Delete(); err != nil {
		a.logger.Errorf("delete session: %v", err)
		return
	}
	a.logger.Infof("session removed")
}

func (a *Application) dispatchEvent(t state.EventType, payload any) {
	if a.isStopping() {
		return
	}
	// ошибка уже залогирована в Dispatch
	_ = a.Dispatch(state.Event{Type: t, Payload: payload})
}

func (a *Application) requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	parent := context.Background()
	if a != nil && a.runCtx != nil {
		parent = a.runCtx
	}
	return context.WithTimeout(parent, timeout)
}

func (a *Application) isStopping() bool {
	if a == nil || a.runCtx == nil {
		return false
	}
	select {
	case <-a.runCtx.Done():
		return true
	default:
		return false
	}
}

func buildAuthFailurePayload(err error) state.ScenarioResultPayload {
	payload := state.ScenarioResultPayload{
		Kind:    state.ErrorKindAuthFailed,
		Message: "Ошибка авторизации",
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	switch {
	case errors.Is(err, authflow.ErrLoginRejected):
		payload.Message = "Вход через Twitch отклонён"
	case errors.Is(err, authflow.ErrNoToken):
		payload.Message = "Сервер не передал токен"
	case errors.Is(err, context.DeadlineExceeded):
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = "Время ожидания входа истекло"
	}
	return payload
}

// buildRequestFailurePayload предпочитает текст ошибки от сервера, иначе общий текст.
func buildRequestFailurePayload(err error, fallback string) state.ScenarioResultPayload {
	payload := state.ScenarioResultPayload{
		Kind:    state.ErrorKindUnknown,
		Message: fallback,
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		payload.Message = messageTimeout
		return payload
	}
	var wErr *workerclient.Error
	if !errors.As(err, &wErr) {
		return payload
	}
	if wErr.Kind != "" {
		payload.Kind = wErr.Kind
	}
	switch {
	case wErr.Message != "":
		payload.Message = wErr.Message
	case wErr.Kind == state.ErrorKindNetworkUnavailable:
		payload.Message = messageNetwork
	case wErr.Kind == state.ErrorKindUnvoteUnsupported:
		payload.Message = messageUnvoteDisabled
	case wErr.Status > 0:
		payload.Message = fmt.Sprintf("%s (код %d)", fallback, wErr.Status)
	}
	return payload
}
