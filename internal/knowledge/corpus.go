package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"intake-agent/internal/domain"
)

// Corpus is the static question/answer knowledge base. It is loaded once at
// startup and only read afterwards.
type Corpus struct {
	pairs []domain.QAPair
}

// NewCorpus copies pairs into a corpus, dropping entries without a question.
func NewCorpus(pairs []domain.QAPair) *Corpus {
	out := make([]domain.QAPair, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p.Question) == "" {
			continue
		}
		out = append(out, p)
	}
	return &Corpus{pairs: out}
}

// Load reads a corpus from a .yaml/.yml or .json file holding a list of
// {question, answer} objects.
func Load(path string) (*Corpus, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("knowledge: path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	pairs, err := decode(filepath.Ext(path), raw)
	if err != nil {
		return nil, fmt.Errorf("knowledge: decode %s: %w", path, err)
	}
	return NewCorpus(pairs), nil
}

func decode(ext string, raw []byte) ([]domain.QAPair, error) {
	var pairs []domain.QAPair
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&pairs); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}
	return pairs, nil
}

// Pairs returns the entries in original order. Callers must not modify the result.
func (c *Corpus) Pairs() []domain.QAPair {
	if c == nil {
		return nil
	}
	return c.pairs
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.pairs)
}
