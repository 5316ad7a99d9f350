// Package ballot содержит статический бюллетень премии: номинации и кандидатов.
// Бюллетень встраивается в бинарник и не меняется во время работы.
package ballot

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed ballot.yaml
var embedded []byte

// ErrInvalidBallot возвращается, если бюллетень не прошёл проверку.
var ErrInvalidBallot = errors.New("ballot: invalid")

// Candidate описывает одного кандидата номинации.
type Candidate struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Image string `yaml:"image,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

// Nomination описывает номинацию и упорядоченный список кандидатов.
type Nomination struct {
	ID         string      `yaml:"id"`
	Title      string      `yaml:"title"`
	Candidates []Candidate `yaml:"candidates"`
}

// Ballot: упорядоченный список номинаций.
type Ballot struct {
	Nominations []Nomination `yaml:"nominations"`
}

// Default возвращает встроенный бюллетень.
func Default() (*Ballot, error) {
	return Parse(embedded)
}

// LoadFile читает бюллетень из YAML-файла вместо встроенного.
func LoadFile(path string) (*Ballot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ballot %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("ballot %s: %w", path, err)
	}
	return b, nil
}

// Load возвращает бюллетень из path. При пустом path используется встроенный.
func Load(path string) (*Ballot, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse разбирает YAML, нормализует заголовки и проверяет бюллетень.
func Parse(data []byte) (*Ballot, error) {
	var b Ballot
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBallot, err)
	}
	b.normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Ballot) normalize() {
	for i := range b.Nominations {
		nom := &b.Nominations[i]
		nom.ID = strings.TrimSpace(nom.ID)
		nom.Title = norm.NFC.String(strings.TrimSpace(nom.Title))
		for j := range nom.Candidates {
			c := &nom.Candidates[j]
			c.ID = strings.TrimSpace(c.ID)
			c.Title = norm.NFC.String(strings.TrimSpace(c.Title))
			c.Image = strings.TrimSpace(c.Image)
			c.URL = strings.TrimSpace(c.URL)
		}
	}
}

// Validate проверяет уникальность идентификаторов и непустые заголовки.
func (b *Ballot) Validate() error {
	if b == nil || len(b.Nominations) == 0 {
		return fmt.Errorf("%w: no nominations", ErrInvalidBallot)
	}
	seen := make(map[string]struct{}, len(b.Nominations))
	for _, nom := range b.Nominations {
		if nom.ID == "" {
			return fmt.Errorf("%w: nomination id is empty", ErrInvalidBallot)
		}
		if _, dup := seen[nom.ID]; dup {
			return fmt.Errorf("%w: duplicate nomination %s", ErrInvalidBallot, nom.ID)
		}
		seen[nom.ID] = struct{}{}
		if nom.Title == "" {
			return fmt.Errorf("%w: nomination %s: title is empty", ErrInvalidBallot, nom.ID)
		}
		if len(nom.Candidates) == 0 {
			return fmt.Errorf("%w: nomination %s: no candidates", ErrInvalidBallot, nom.ID)
		}
		cands := make(map[string]struct{}, len(nom.Candidates))
		for _, c := range nom.Candidates {
			if c.ID == "" {
				return fmt.Errorf("%w: nomination %s: candidate id is empty", ErrInvalidBallot, nom.ID)
			}
			if _, dup := cands[c.ID]; dup {
				return fmt.Errorf("%w: nomination %s: duplicate candidate %s", ErrInvalidBallot, nom.ID, c.ID)
			}
			cands[c.ID] = struct{}{}
			if c.Title == "" {
				return fmt.Errorf("%w: nomination %s: candidate %s: title is empty", ErrInvalidBallot, nom.ID, c.ID)
			}
		}
	}
	return nil
}

// Nomination возвращает номинацию по ID.
func (b *Ballot) Nomination(id string) (*Nomination, bool) {
	if b == nil {
		return nil, false
	}
	for i := range b.Nominations {
		if b.Nominations[i].ID == id {
			return &b.Nominations[i], true
		}
	}
	return nil, false
}

// HasCandidate сообщает, есть ли кандидат в указанной номинации.
func (b *Ballot) HasCandidate(nominationID, candidateID string) bool {
	nom, ok := b.Nomination(nominationID)
	if !ok {
		return false
	}
	_, ok = nom.Candidate(candidateID)
	return ok
}

// Candidate возвращает кандидата номинации по ID.
func (n *Nomination) Candidate(id string) (*Candidate, bool) {
	for i := range n.Candidates {
		if n.Candidates[i].ID == id {
			return &n.Candidates[i], true
		}
	}
	return nil, false
}

// Link возвращает ссылку кандидата: URL, если задан, иначе картинку.
func (c Candidate) Link() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Image
}
