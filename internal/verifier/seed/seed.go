// Package seed loads the verifier catalogue from YAML and registers it.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rwaledger/internal/verifier/models"
	"rwaledger/internal/verifier/service"
	id "rwaledger/pkg/domain"
)

type Entry struct {
	Name           string `yaml:"name"`
	Tier           string `yaml:"tier"`
	Specialization string `yaml:"specialization"`
}

type Catalogue struct {
	Verifiers []Entry `yaml:"verifiers"`
}

// Directory is the part of the verifier service seeding needs.
type Directory interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Verifier, error)
	Approve(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error)
	List(ctx context.Context) ([]*models.Verifier, error)
}

//go:embed default.yaml
var defaultCatalogue []byte

// Default returns the built-in catalogue of four verifiers.
func Default() (*Catalogue, error) {
	return parse("built-in", defaultCatalogue)
}

// LoadFile reads a catalogue from path. An empty path yields Default.
func LoadFile(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifier catalogue: %w", err)
	}
	return parse(path, raw)
}

func parse(source string, raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse verifier catalogue %s: %w", source, err)
	}
	for i, e := range c.Verifiers {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("verifier catalogue entry %d has no name", i)
		}
		if _, err := models.ParseTier(e.Tier); err != nil {
			return nil, fmt.Errorf("verifier catalogue entry %q: %w", e.Name, err)
		}
	}
	return &c, nil
}

// Apply registers and activates every entry whose name is not in the
// directory yet. It returns the number of verifiers created.
func Apply(ctx context.Context, dir Directory, c *Catalogue) (int, error) {
	existing, err := dir.List(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		known[strings.ToLower(v.Name)] = struct{}{}
	}

	created := 0
	for _, e := range c.Verifiers {
		if _, ok := known[strings.ToLower(strings.TrimSpace(e.Name))]; ok {
			continue
		}
		tier, err := models.ParseTier(e.Tier)
		if err != nil {
			return created, err
		}
		v, err := dir.Register(ctx, service.RegisterRequest{Name: e.Name, Tier: tier, Specialization: e.Specialization})
		if err != nil {
			return created, fmt.Errorf("register %s: %w", e.Name, err)
		}
		if _, err := dir.Approve(ctx, v.ID); err != nil {
			return created, fmt.Errorf("approve %s: %w", e.Name, err)
		}
		known[strings.ToLower(strings.TrimSpace(e.Name))] = struct{}{}
		created++
	}
	return created, nil
}
