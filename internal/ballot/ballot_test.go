package ballot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBallot(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	require.Len(t, b.Nominations, 1)

	nom := b.Nominations[0]
	assert.Equal(t, "zavoz_goda", nom.ID)
	assert.Equal(t, "Завоз года — кандидаты", nom.Title)

	ids := make([]string, 0, len(nom.Candidates))
	for _, c := range nom.Candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"iris", "sab", "blur", "tulpa"}, ids)
	assert.Equal(t, `"Тульпа" Вики`, nom.Candidates[3].Title)
}

func TestLookups(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	nom, ok := b.Nomination("zavoz_goda")
	require.True(t, ok)
	c, ok := nom.Candidate("sab")
	require.True(t, ok)
	assert.Equal(t, "Веном в САБчате", c.Title)

	assert.True(t, b.HasCandidate("zavoz_goda", "iris"))
	assert.False(t, b.HasCandidate("zavoz_goda", "nobody"))
	assert.False(t, b.HasCandidate("missing", "iris"))

	_, ok = b.Nomination("missing")
	assert.False(t, ok)

	var empty *Ballot
	_, ok = empty.Nomination("zavoz_goda")
	assert.False(t, ok)
}

func TestParseNormalizesTitles(t *testing.T) {
	// "й" записан как "и" + комбинируемая бреве
	data := []byte("nominations:\n  - id: ' best '\n    title: \"Лучши\u0438\u0306\"\n    candidates:\n      - id: a\n        title: '  A  '\n        url: ' https://example.com/a '\n")
	b, err := Parse(data)
	require.NoError(t, err)

	nom := b.Nominations[0]
	assert.Equal(t, "best", nom.ID)
	assert.Equal(t, "Лучший", nom.Title)
	assert.Equal(t, "A", nom.Candidates[0].Title)
	assert.Equal(t, "https://example.com/a", nom.Candidates[0].Link())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "nominations: []\n"},
		{"no id", "nominations:\n  - title: T\n    candidates:\n      - {id: a, title: A}\n"},
		{"no title", "nominations:\n  - id: n\n    candidates:\n      - {id: a, title: A}\n"},
		{"no candidates", "nominations:\n  - id: n\n    title: T\n"},
		{"duplicate nomination", "nominations:\n  - {id: n, title: T, candidates: [{id: a, title: A}]}\n  - {id: n, title: U, candidates: [{id: b, title: B}]}\n"},
		{"duplicate candidate", "nominations:\n  - {id: n, title: T, candidates: [{id: a, title: A}, {id: a, title: B}]}\n"},
		{"candidate without title", "nominations:\n  - {id: n, title: T, candidates: [{id: a}]}\n"},
		{"broken yaml", "nominations: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidBallot)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nominations:\n  - {id: n, title: T, candidates: [{id: a, title: A, image: a.png}]}\n"), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a.png", b.Nominations[0].Candidates[0].Link())

	b, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "zavoz_goda", b.Nominations[0].ID)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
