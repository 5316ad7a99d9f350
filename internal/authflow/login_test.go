package authflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// follow имитирует браузер: сразу переходит по адресу return_to с заданными параметрами.
func follow(query url.Values) (StartURLFunc, OpenFunc) {
	start := func(returnTo string) (string, error) {
		u, err := url.Parse(returnTo)
		if err != nil {
			return "", err
		}
		u.RawQuery = query.Encode()
		return u.String(), nil
	}
	open := func(target string) error {
		go func() {
			resp, err := http.Get(target)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
	return start, open
}

func TestLoginReturnsToken(t *testing.T) {
	start, open := follow(url.Values{"token": {"abc"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := Login(ctx, "127.0.0.1:0", start, open, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestLoginRejected(t *testing.T) {
	start, open := follow(url.Values{"error": {"access_denied"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Login(ctx, "127.0.0.1:0", start, open, nil)
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestLoginOpenFailure(t *testing.T) {
	boom := errors.New("no browser")
	start, _ := follow(nil)
	_, err := Login(context.Background(), "127.0.0.1:0", start, func(string) error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
}

func TestLoginStartURLFailure(t *testing.T) {
	boom := errors.New("bad url")
	_, err := Login(context.Background(), "127.0.0.1:0",
		func(string) (string, error) { return "", boom },
		func(string) error { t.Fatal("browser must not open"); return nil }, nil)
	assert.ErrorIs(t, err, boom)
}

func TestLoginTimeout(t *testing.T) {
	start, _ := follow(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Login(ctx, "127.0.0.1:0", start, func(string) error { return nil }, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
