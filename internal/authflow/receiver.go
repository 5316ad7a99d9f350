// Package authflow принимает редирект воркера после входа через Twitch.
//
// Воркер завершает OAuth и перенаправляет браузер на return_to с параметром
// token (или error). Receiver слушает локальный адрес и отдаёт токен один раз.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"bezdarei/client/internal/logging"
)

// CallbackPath: путь, на который воркер возвращает браузер.
const CallbackPath = "/callback"

var (
	// ErrLoginRejected означает, что воркер вернул параметр error.
	ErrLoginRejected = errors.New("login rejected")
	// ErrNoToken означает, что редирект пришёл без токена.
	ErrNoToken = errors.New("no token received")
)

type result struct {
	token string
	err   error
}

// Receiver: одноразовый HTTP-приёмник редиректа.
type Receiver struct {
	listener  net.Listener
	server    *http.Server
	logger    *logging.Logger
	results   chan result
	closeOnce sync.Once
}

// Listen открывает локальный порт. Адрес вида 127.0.0.1:0 выбирает свободный порт.
func Listen(addr string, logger *logging.Logger) (*Receiver, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	r := &Receiver{
		listener: ln,
		logger:   logger,
		results:  make(chan result, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, r.handleCallback)
	r.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.deliver(result{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	return r, nil
}

// ReturnURL возвращает адрес для параметра return_to.
func (r *Receiver) ReturnURL() string {
	return "http://" + r.listener.Addr().String() + CallbackPath
}

// Wait блокируется до получения токена, ошибки редиректа или отмены ctx.
func (r *Receiver) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-r.results:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close останавливает приёмник.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = r.server.Shutdown(ctx)
	})
	return err
}

func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := req.URL.Query()
	if reason := strings.TrimSpace(q.Get("error")); reason != "" {
		r.logger.Errorf("login redirect carried error: %s", reason)
		renderPage(w, http.StatusBadRequest, "Вход не выполнен", reason)
		r.deliver(result{err: fmt.Errorf("%w: %s", ErrLoginRejected, reason)})
		return
	}
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		renderPage(w, http.StatusBadRequest, "Вход не выполнен", "Сервер не передал токен")
		r.deliver(result{err: ErrNoToken})
		return
	}
	r.logger.Infof("login redirect received, token length %d", len(token))
	renderPage(w, http.StatusOK, "Вход выполнен", "Можно закрыть вкладку и вернуться в приложение.")
	r.deliver(result{token: token})
}

// deliver отдаёт только первый результат, остальные отбрасываются.
func (r *Receiver) deliver(res result) {
	select {
	case r.results <- res:
	default:
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: system-ui, sans-serif; text-align: center; padding: 48px;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, struct{ Title, Message string }{title, message})
}
