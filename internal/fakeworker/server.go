// Package fakeworker: in-memory реализация API воркера голосования.
// Используется в тестах и локальной разработке (cmd/dev-worker); хранит всё в памяти.
package fakeworker

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/logging"
)

// User: пользователь, от имени которого выдаются токены.
type User struct {
	Login        string
	DisplayName  string
	TwitchUserID string
}

// Options задаёт поведение фейкового воркера.
type Options struct {
	// User выдаётся при каждом входе через /auth/twitch/start.
	User User
	// Ballot, если задан, используется для проверки номинаций и кандидатов.
	Ballot *ballot.Ballot
	// EnableUnvote регистрирует /api/unvote; без него маршрут отвечает 404.
	EnableUnvote bool
	// AllowRevote разрешает перезаписать уже сохранённый голос.
	AllowRevote bool
	// DenyLogin заставляет /auth/twitch/start возвращать error=access_denied.
	DenyLogin bool
	Logger    *logging.Logger
}

// Server хранит токены и голоса.
type Server struct {
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	tokens map[string]User
	votes  map[string]map[string]string
}

// New создаёт фейковый воркер.
func New(opts Options) *Server {
	if opts.User.Login == "" {
		opts.User = User{Login: "viewer", DisplayName: "Viewer", TwitchUserID: "1"}
	}
	return &Server{
		opts:   opts,
		logger: opts.Logger,
		tokens: make(map[string]User),
		votes:  make(map[string]map[string]string),
	}
}

// Handler возвращает маршруты воркера.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/twitch/start", s.loggingMiddleware(s.authStartHandler))
	mux.HandleFunc("GET /api/me", s.loggingMiddleware(s.authMiddleware(s.meHandler)))
	mux.HandleFunc("GET /api/my-votes", s.loggingMiddleware(s.authMiddleware(s.myVotesHandler)))
	mux.HandleFunc("POST /api/vote", s.loggingMiddleware(s.authMiddleware(s.voteHandler)))
	if s.opts.EnableUnvote {
		mux.HandleFunc("POST /api/unvote", s.loggingMiddleware(s.authMiddleware(s.unvoteHandler)))
	}
	return mux
}

// IssueToken выдаёт новый токен для пользователя.
func (s *Server) IssueToken(user User) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = user
	s.mu.Unlock()
	return token
}

// RevokeToken делает токен недействительным.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// SetVote записывает голос напрямую, минуя HTTP.
func (s *Server) SetVote(login, nominationID, candidateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userVotes(login)[nominationID] = candidateID
}

// Votes возвращает копию голосов пользователя.
func (s *Server) Votes(login string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k, v := range s.votes[login] {
		out[k] = v
	}
	return out
}

func (s *Server) userVotes(login string) map[string]string {
	votes, ok := s.votes[login]
	if !ok {
		votes = make(map[string]string)
		s.votes[login] = votes
	}
	return votes
}

func (s *Server) lookup(token string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.tokens[token]
	return user, ok
}

// authStartHandler эмулирует завершённый OAuth: сразу возвращает браузер на return_to.
func (s *Server) authStartHandler(w http.ResponseWriter, r *http.Request) {
	returnTo := strings.TrimSpace(r.URL.Query().Get("return_to"))
	target, err := url.Parse(returnTo)
	if returnTo == "" || err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		writeJSON(w, http.StatusBadRequest, resultDTO{OK: false, Error: "return_to is required"})
		return
	}
	q := target.Query()
	if s.opts.DenyLogin {
		q.Set("error", "access_denied")
	} else {
		q.Set("token", s.IssueToken(s.opts.User))
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
