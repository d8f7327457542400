package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirinyoku/beachclub/internal/domain"
)

var ErrInvalidCatalog = errors.New("invalid state catalog")

type stateCatalogFile struct {
	States []domain.ReservationState `yaml:"states"`
}

// LoadStateCatalog reads the seed of the reservation lifecycle catalog.
// The file only seeds the table; the table stays the source of truth so
// that admin edits apply without a restart.
func LoadStateCatalog(path string) ([]domain.ReservationState, error) {
	const op = "config.LoadStateCatalog"

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ParseStateCatalog(b)
}

// ParseStateCatalog validates a YAML catalog: codes must be unique and at
// least one state must hold and one must release.
func ParseStateCatalog(b []byte) ([]domain.ReservationState, error) {
	const op = "config.ParseStateCatalog"

	var f stateCatalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seen := map[string]bool{}
	holding, releasing := 0, 0

	for i, s := range f.States {
		if s.Code == "" {
			return nil, fmt.Errorf("%s: state #%d has no code: %w", op, i+1, ErrInvalidCatalog)
		}
		if seen[s.Code] {
			return nil, fmt.Errorf("%s: duplicate state %q: %w", op, s.Code, ErrInvalidCatalog)
		}
		seen[s.Code] = true

		if f.States[i].Name == "" {
			f.States[i].Name = s.Code
		}

		if s.Releasing {
			releasing++
		} else {
			holding++
		}
	}

	if holding == 0 || releasing == 0 {
		return nil, fmt.Errorf("%s: need holding and releasing states: %w", op, ErrInvalidCatalog)
	}

	return f.States, nil
}
