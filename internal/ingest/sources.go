package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Sources lists the pages to scrape.
type Sources struct {
	Funds    []string `yaml:"funds"`
	Platform []string `yaml:"platform"`
}

// All returns fund URLs followed by platform URLs, trimmed and deduplicated.
func (s *Sources) All() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{s.Funds, s.Platform} {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// LoadSources reads a sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read sources %s", path)
	}

	var wrapper struct {
		Sources Sources `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "ingest: parse sources")
	}
	if len(wrapper.Sources.All()) == 0 {
		return nil, eris.Errorf("ingest: no urls in %s", path)
	}
	return &wrapper.Sources, nil
}
