package authflow

import (
	"context"
	"fmt"

	"bezdarei/client/internal/logging"
)

// StartURLFunc строит адрес страницы входа воркера для заданного return_to.
type StartURLFunc func(returnTo string) (string, error)

// OpenFunc открывает адрес в браузере пользователя.
type OpenFunc func(rawURL string) error

// Login поднимает приёмник на addr, открывает страницу входа и ждёт токен до отмены ctx.
func Login(ctx context.Context, addr string, startURL StartURLFunc, open OpenFunc, logger *logging.Logger) (string, error) {
	receiver, err := Listen(addr, logger)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := receiver.Close(); err != nil {
			logger.Errorf("close callback receiver: %v", err)
		}
	}()

	target, err := startURL(receiver.ReturnURL())
	if err != nil {
		return "", fmt.Errorf("build login url: %w", err)
	}
	logger.Infof("opening login page, return_to=%s", receiver.ReturnURL())
	if err := open(target); err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}
	return receiver.Wait(ctx)
}
