// Package archive implements a telemetry.Provider reading session dumps from YAML files
// laid out as <root>/<season>/<event>/<kind>.yaml.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".yaml", ".yml"}

var _ telemetry.Provider = (*Provider)(nil)

// Provider reads session dumps from a directory tree
type Provider struct {
	root string
}

// New returns a Provider reading sessions below root.
func New(root string) *Provider {
	return &Provider{root: root}
}

// Path returns the file name of the session dump, without extension.
func (p *Provider) Path(session telemetry.SessionKey) (string, error) {
	event := strings.TrimSpace(session.Event)
	if event == "" || event == "." || event == ".." || strings.ContainsAny(event, `/\`) {
		return "", fmt.Errorf("invalid event name: %q", session.Event)
	}
	return filepath.Join(p.root, strconv.Itoa(session.Season), event, string(session.Kind)), nil
}

func (p *Provider) Fetch(ctx context.Context, session telemetry.SessionKey) (*telemetry.SessionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := p.Path(session)
	if err != nil {
		return nil, err
	}

	for _, ext := range extensions {
		data, err := load(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		data.Session = session
		return data, nil
	}

	return nil, fmt.Errorf("session %s: %w", session, fs.ErrNotExist)
}

// Save writes a session dump, creating directories as needed, and returns the path of
// the written file.
func (p *Provider) Save(data *telemetry.SessionData) (string, error) {
	base, err := p.Path(data.Session)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	b, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	path := base + extensions[0]
	if err = os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("writing session: %w", err)
	}
	return path, nil
}

func load(path string) (*telemetry.SessionData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data telemetry.SessionData
	if err = yaml.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &data, nil
}
