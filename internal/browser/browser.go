// Package browser открывает страницу входа в системном браузере.
package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsupportedURL возвращается для адресов, которые нельзя передавать ОС.
var ErrUnsupportedURL = errors.New("browser: only http and https urls are supported")

// Opener запускает внешнюю команду, открывающую URL.
type Opener struct {
	// start заменяется в тестах.
	start func(name string, args ...string) error
}

// New создаёт Opener для текущей ОС.
func New() *Opener {
	return &Opener{start: startDetached}
}

// Open проверяет URL и открывает его в браузере по умолчанию.
func (o *Opener) Open(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrUnsupportedURL
	}
	if runtime.GOOS == "windows" {
		return shellOpen(parsed.String())
	}
	name, args := command(runtime.GOOS, parsed.String())
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func command(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
