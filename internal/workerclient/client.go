package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bezdarei/client/internal/logging"
	"bezdarei/client/internal/state"
)

// Client инкапсулирует HTTP-взаимодействия с воркером голосования.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logging.Logger
}

// Options позволяет переопределить зависимости клиента.
type Options struct {
	HTTPClient *http.Client
	Logger     *logging.Logger
}

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20

	pathAuthStart = "/auth/twitch/start"
	pathMe        = "/api/me"
	pathMyVotes   = "/api/my-votes"
	pathVote      = "/api/vote"
	pathUnvote    = "/api/unvote"
)

// New создаёт новый клиент воркера.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("baseURL %q must be absolute", baseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: parsed, httpClient: client, logger: opts.Logger}, nil
}

// Error описывает проблему при запросах к воркеру.
// Message содержит текст ошибки, присланный сервером, если он был.
type Error struct {
	Op      string
	Kind    state.ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "worker client error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AuthStartURL возвращает адрес начала входа через Twitch с параметром return_to.
func (c *Client) AuthStartURL(returnTo string) (string, error) {
	if strings.TrimSpace(returnTo) == "" {
		return "", errors.New("return_to is empty")
	}
	u := c.resolve(pathAuthStart)
	q := u.Query()
	q.Set("return_to", returnTo)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Me вызывает GET /api/me. Ответ {"ok":false} означает недействительный токен.
func (c *Client) Me(ctx context.Context, token string) (state.User, error) {
	const op = "Me"
	var body MeResponse
	if err := c.exchange(ctx, op, http.MethodGet, pathMe, token, nil, &body, state.ErrorKindAuthFailed); err != nil {
		return state.User{}, err
	}
	user, err := body.User.Validate()
	if err != nil {
		return state.User{}, &Error{Op: op, Kind: state.ErrorKindUnknown, Status: http.StatusOK, Err: err}
	}
	return user, nil
}

// MyVotes вызывает GET /api/my-votes и возвращает голоса в виде номинация → кандидат.
func (c *Client) MyVotes(ctx context.Context, token string) (map[string]string, error) {
	const op = "MyVotes"
	var body MyVotesResponse
	if err := c.exchange(ctx, op, http.MethodGet, pathMyVotes, token, nil, &body, state.ErrorKindUnknown); err != nil {
		return nil, err
	}
	return toMap(body.Votes), nil
}

// Vote вызывает POST /api/vote.
func (c *Client) Vote(ctx context.Context, token, nominationID, candidateID string) error {
	const op = "Vote"
	payload := VoteRequest{NominationID: nominationID, CandidateID: candidateID}
	var body ResultResponse
	return c.exchange(ctx, op, http.MethodPost, pathVote, token, payload, &body, state.ErrorKindVoteRejected)
}

// Unvote вызывает POST /api/unvote. 404 означает, что воркер не поддерживает отмену.
func (c *Client) Unvote(ctx context.Context, token, nominationID string) error {
	const op = "Unvote"
	payload := UnvoteRequest{NominationID: nominationID}
	var body ResultResponse
	return c.exchange(ctx, op, http.MethodPost, pathUnvote, token, payload, &body, state.ErrorKindVoteRejected)
}

// exchange выполняет запрос и раскладывает ответ в out.
// rejectKind используется для ответов {"ok":false} с кодом 2xx/4xx.
func (c *Client) exchange(ctx context.Context, op, method, path, token string, payload any, out failer, rejectKind state.ErrorKind) error {
	if strings.TrimSpace(token) == "" {
		return &Error{Op: op, Kind: state.ErrorKindAuthFailed, Err: errors.New("token is empty")}
	}
	resp, err := c.doJSON(ctx, method, path, token, payload)
	if err != nil {
		return wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	defer resp.Body.Close()
	c.logger.Debugf("%s %s -> %d", method, path, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return wrapError(op, state.ErrorKindNetworkUnavailable, err)
	}
	decodeErr := json.Unmarshal(raw, out)
	failed, message := false, ""
	if decodeErr == nil {
		failed, message = out.failure()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Op: op, Kind: state.ErrorKindAuthFailed, Status: resp.StatusCode, Message: message, Err: errors.New("auth failed")}
	case resp.StatusCode == http.StatusNotFound && path == pathUnvote:
		return &Error{Op: op, Kind: state.ErrorKindUnvoteUnsupported, Status: resp.StatusCode, Err: errors.New("unvote endpoint not found")}
	case decodeErr != nil:
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Error{Op: op, Kind: state.ErrorKindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
		}
		return &Error{Op: op, Kind: state.ErrorKindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	case failed:
		if message == "" {
			message = "request rejected"
		}
		return &Error{Op: op, Kind: rejectKind, Status: resp.StatusCode, Message: message, Err: errors.New(message)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{Op: op, Kind: state.ErrorKindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = ""
	return &u
}

func (c *Client) do(ctx context.Context, method, path, authToken string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path).String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return c.httpClient.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path, authToken string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, err
		}
		body = buf
	}
	return c.do(ctx, method, path, authToken, body)
}

func wrapError(op string, kind state.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
