package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigFailed обозначает любую проблему с чтением или разбором config.yaml.
var ErrConfigFailed = errors.New("config: failed to load")

// VotePolicy определяет, можно ли менять уже сохранённый голос.
type VotePolicy string

const (
	// VotePolicyLocked запрещает менять сохранённый голос.
	VotePolicyLocked VotePolicy = "locked"
	// VotePolicyChangeable разрешает выбрать другого кандидата и сохранить заново.
	VotePolicyChangeable VotePolicy = "changeable"
)

const (
	defaultCallbackAddr   = "127.0.0.1:53682"
	defaultLoginTimeout   = 5 * time.Minute
	defaultRequestTimeout = 15 * time.Second
	defaultTokenFile      = "session/token"

	envWorkerURL = "BEZDAREI_WORKER_URL"
	envLogLevel  = "BEZDAREI_LOG_LEVEL"
)

// Config описывает пользовательские настройки приложения и вычисляемые пути.
type Config struct {
	WorkerURL      string        `yaml:"worker_url"`
	CallbackAddr   string        `yaml:"callback_addr"`
	LoginTimeout   time.Duration `yaml:"login_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	VotePolicy     VotePolicy    `yaml:"vote_policy"`
	AllowUnvote    bool          `yaml:"allow_unvote"`
	BallotFile     string        `yaml:"ballot_file"`
	TokenFile      string        `yaml:"token_file"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`

	AppDir string `yaml:"-"`
}

// Error содержит дополнительный контекст при неудачной загрузке конфигурации.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ErrConfigFailed.Error()
	}
	return fmt.Sprintf("%v: %s: %v", ErrConfigFailed, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is позволяет проверять любую ошибку конфигурации через errors.Is(err, ErrConfigFailed).
func (e *Error) Is(target error) bool {
	return target == ErrConfigFailed
}

// DetectAppDir возвращает каталог, в котором находится исполняемый файл.
func DetectAppDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exePath)
	if err == nil {
		exePath = resolved
	}
	return filepath.Dir(exePath), nil
}

// DefaultPath возвращает путь к config.yaml относительно каталога приложения.
func DefaultPath(appDir string) string {
	return filepath.Join(appDir, "config.yaml")
}

// Load читает и валидирует YAML конфигурации, применяя appDir ко всем относительным путям.
// Файл .env из appDir и переменные окружения BEZDAREI_* перекрывают значения из YAML.
func Load(path string, appDir string) (*Config, error) {
	if path == "" {
		return nil, &Error{Path: path, Err: errors.New("config path is empty")}
	}
	if appDir == "" {
		return nil, &Error{Path: path, Err: errors.New("app directory is empty")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := loadDotEnv(appDir); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.applyEnv()
	cfg.AppDir = appDir
	cfg.applyDefaults()
	cfg.applyAppDir()
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return &cfg, nil
}

func loadDotEnv(appDir string) error {
	envPath := filepath.Join(appDir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	// godotenv.Load не перезаписывает уже заданные переменные окружения.
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(envWorkerURL)); value != "" {
		c.WorkerURL = value
	}
	if value := strings.TrimSpace(os.Getenv(envLogLevel)); value != "" {
		c.LogLevel = value
	}
}

func (c *Config) applyDefaults() {
	c.WorkerURL = strings.TrimRight(strings.TrimSpace(c.WorkerURL), "/")
	c.CallbackAddr = strings.TrimSpace(c.CallbackAddr)
	if c.CallbackAddr == "" {
		c.CallbackAddr = defaultCallbackAddr
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = defaultLoginTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	c.VotePolicy = VotePolicy(strings.TrimSpace(strings.ToLower(string(c.VotePolicy))))
	if c.VotePolicy == "" {
		c.VotePolicy = VotePolicyLocked
	}
	if strings.TrimSpace(c.TokenFile) == "" {
		c.TokenFile = defaultTokenFile
	}
	c.LogLevel = normalizeLogLevel(c.LogLevel)
}

func (c *Config) applyAppDir() {
	if c.AppDir == "" {
		return
	}
	c.AppDir = filepath.Clean(c.AppDir)
	c.LogFile = makeAbsolute(c.LogFile, c.AppDir)
	c.TokenFile = makeAbsolute(c.TokenFile, c.AppDir)
	c.BallotFile = makeAbsolute(c.BallotFile, c.AppDir)
}

func (c *Config) validate() error {
	switch {
	case c.WorkerURL == "":
		return errors.New("worker_url is required")
	case c.LogFile == "":
		return errors.New("log_file is required")
	case c.AppDir == "":
		return errors.New("app directory is unknown")
	}
	parsed, err := url.Parse(c.WorkerURL)
	if err != nil {
		return fmt.Errorf("worker_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("worker_url must be http or https, got %q", c.WorkerURL)
	}
	if _, _, err := net.SplitHostPort(c.CallbackAddr); err != nil {
		return fmt.Errorf("callback_addr: %w", err)
	}
	switch c.VotePolicy {
	case VotePolicyLocked, VotePolicyChangeable:
	default:
		return fmt.Errorf("unsupported vote_policy %q", c.VotePolicy)
	}
	if _, ok := allowedLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) ensureDirectories() error {
	paths := []string{filepath.Dir(c.LogFile), filepath.Dir(c.TokenFile)}
	for _, dir := range paths {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func makeAbsolute(path string, base string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if base == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func normalizeLogLevel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "info"
	}
	return value
}

var allowedLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"error": {},
}
