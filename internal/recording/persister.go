package recording

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Persister reads and writes recording files.
// Each recorded request path maps to one YAML file in the directory.
type Persister struct {
	logger zerolog.Logger
	dir    string
}

func NewPersister(logger zerolog.Logger, dir string) *Persister {
	return &Persister{
		logger: logger.With().Str("component", "persister").Logger(),
		dir:    dir,
	}
}

type recordingFile struct {
	Interactions []Interaction `yaml:"interactions"`
}

// Save writes the interactions recorded for one path.
func (p *Persister) Save(path string, interactions []Interaction) error {
	err := os.MkdirAll(p.dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "recording dir cannot be created")
	}

	marshaled, err := yaml.Marshal(recordingFile{Interactions: interactions})
	if err != nil {
		return errors.Wrap(err, "recording marshal failed")
	}

	file := filepath.Join(p.dir, FileName(path))
	err = os.WriteFile(file, marshaled, 0o644)
	if err != nil {
		return errors.Wrapf(err, "recording file %s cannot be written", file)
	}

	p.logger.Debug().Str("file", file).Int("count", len(interactions)).Msg("recordings saved")

	return nil
}

// SaveAll persists every recorded path, one file per path, concurrently.
func (p *Persister) SaveAll(store *Store) error {
	var g errgroup.Group
	for _, path := range store.Paths() {
		path := path

		g.Go(func() error {
			return p.Save(path, store.Get(path))
		})
	}

	return g.Wait()
}

// LoadAll reads every recording file in the directory into the store.
// A missing directory is not an error: replay just has nothing to serve.
func (p *Persister) LoadAll(store *Store) error {
	entries, err := os.ReadDir(p.dir)
	if os.IsNotExist(err) {
		p.logger.Warn().Str("dir", p.dir).Msg("recording directory does not exist")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "recording dir cannot be read")
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		file := filepath.Join(p.dir, entry.Name())

		raw, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "recording file %s cannot be read", file)
		}

		var parsed recordingFile
		err = yaml.Unmarshal(raw, &parsed)
		if err != nil {
			return errors.Wrapf(err, "recording file %s cannot be parsed", file)
		}

		for _, i := range parsed.Interactions {
			store.Add(i)
		}

		loaded += len(parsed.Interactions)
	}

	p.logger.Info().Str("dir", p.dir).Int("count", loaded).Msg("recordings loaded")

	return nil
}
