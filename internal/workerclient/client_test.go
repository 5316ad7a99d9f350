package workerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bezdarei/client/internal/state"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", Options{})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func requireWorkerError(t *testing.T, err error, kind state.ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var wErr *Error
	require.True(t, errors.As(err, &wErr), "got %T: %v", err, err)
	assert.Equal(t, kind, wErr.Kind)
	return wErr
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New("", Options{})
	assert.Error(t, err)
	_, err = New("/relative", Options{})
	assert.Error(t, err)
	_, err = New("https://w.example", Options{})
	assert.NoError(t, err)
}

func TestAuthStartURL(t *testing.T) {
	c, err := New("https://w.example/base/", Options{})
	require.NoError(t, err)

	raw, err := c.AuthStartURL("http://127.0.0.1:53682/callback")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/base/auth/twitch/start", u.Path)
	assert.Equal(t, "http://127.0.0.1:53682/callback", u.Query().Get("return_to"))

	_, err = c.AuthStartURL("")
	assert.Error(t, err)
}

func TestMeSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"ok":true,"user":{"display_name":"Лиза","login":"liza","twitch_user_id":"42"}}`)
	})

	user, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, state.User{DisplayName: "Лиза", Login: "liza", TwitchUserID: "42"}, user)
	assert.Equal(t, "Лиза (@liza)", user.Label())
}

func TestMeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   state.ErrorKind
	}{
		{"ok false", http.StatusOK, `{"ok":false,"error":"bad token"}`, state.ErrorKindAuthFailed},
		{"unauthorized", http.StatusUnauthorized, `{"ok":false,"error":"unauthorized"}`, state.ErrorKindAuthFailed},
		{"forbidden plain", http.StatusForbidden, `nope`, state.ErrorKindAuthFailed},
		{"server error", http.StatusInternalServerError, ``, state.ErrorKindUnknown},
		{"garbage", http.StatusOK, `<html>`, state.ErrorKindUnknown},
		{"missing user", http.StatusOK, `{"ok":true}`, state.ErrorKindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Me(context.Background(), "tok")
			wErr := requireWorkerError(t, err, tt.kind)
			assert.Equal(t, "Me", wErr.Op)
		})
	}
}

func TestEmptyTokenIsAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Me(context.Background(), "")
	requireWorkerError(t, err, state.ErrorKindAuthFailed)
}

func TestMyVotes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/my-votes", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"ok":true,"votes":[{"nomination_id":"zavoz_goda","candidate_id":"iris"},{"nomination_id":"","candidate_id":"x"}]}`)
	})
	votes, err := c.MyVotes(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"zavoz_goda": "iris"}, votes)
}

func TestVoteSendsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/vote", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req VoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, VoteRequest{NominationID: "zavoz_goda", CandidateID: "sab"}, req)
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	require.NoError(t, c.Vote(context.Background(), "tok", "zavoz_goda", "sab"))
}

func TestVoteRejectedCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"ok":false,"error":"Вы уже голосовали"}`)
	})
	err := c.Vote(context.Background(), "tok", "zavoz_goda", "sab")
	wErr := requireWorkerError(t, err, state.ErrorKindVoteRejected)
	assert.Equal(t, "Вы уже голосовали", wErr.Message)
	assert.Equal(t, http.StatusConflict, wErr.Status)
	assert.Contains(t, err.Error(), "Вы уже голосовали")
}

func TestUnvote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req UnvoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "zavoz_goda", req.NominationID)
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	require.NoError(t, c.Unvote(context.Background(), "tok", "zavoz_goda"))
}

func TestUnvoteNotFoundIsUnsupported(t *testing.T) {
	c := newTestClient(t, http.NotFound)
	err := c.Unvote(context.Background(), "tok", "zavoz_goda")
	requireWorkerError(t, err, state.ErrorKindUnvoteUnsupported)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base, Options{HTTPClient: &http.Client{Timeout: time.Second}})
	require.NoError(t, err)
	err = c.Vote(context.Background(), "tok", "n", "c")
	requireWorkerError(t, err, state.ErrorKindNetworkUnavailable)
}

func TestContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Me(ctx, "tok")
	requireWorkerError(t, err, state.ErrorKindNetworkUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
