// Package suite loads test-case suites from YAML files and filters them by
// tag. Plugins typically call LoadFile from their GetTestCases hook.
package suite

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/gauntlet/internal/models"
)

// caseConfigYAML is the on-disk shape of a case's configuration. The timeout
// is expressed in (possibly fractional) seconds.
type caseConfigYAML struct {
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	StrictMode     bool    `yaml:"strict_mode"`
}

type caseYAML[I any] struct {
	ID          int            `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Input       I              `yaml:"input"`
	Config      caseConfigYAML `yaml:"config"`
	Expected    *string        `yaml:"expected_output"`
	Tags        []string       `yaml:"tags"`
}

// LoadFile reads a suite file containing a YAML list of test cases. Case IDs
// must be unique; a missing timeout falls back to models.DefaultCaseTimeout
// and a negative one is rejected.
func LoadFile[I any](path string) ([]*models.TestCase[I], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return Parse[I](data)
}

// Parse decodes a YAML test-case list.
func Parse[I any](data []byte) ([]*models.TestCase[I], error) {
	var raw []caseYAML[I]
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suite file: %w", err)
	}

	seen := make(map[int]bool, len(raw))
	cases := make([]*models.TestCase[I], 0, len(raw))
	for _, c := range raw {
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate test case id %d", c.ID)
		}
		seen[c.ID] = true

		if c.Config.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("test case %d: timeout_seconds must be positive", c.ID)
		}
		timeout := models.DefaultCaseTimeout
		if c.Config.TimeoutSeconds > 0 {
			timeout = time.Duration(c.Config.TimeoutSeconds * float64(time.Second))
		}

		cases = append(cases, &models.TestCase[I]{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Input:       c.Input,
			Config: models.CaseConfig{
				Timeout:    timeout,
				StrictMode: c.Config.StrictMode,
			},
			Expected: c.Expected,
			Tags:     c.Tags,
		})
	}

	return cases, nil
}

// FilterByTags keeps the cases carrying at least one of the given tags.
// An empty tag list keeps everything.
func FilterByTags[I any](cases []*models.TestCase[I], tags []string) []*models.TestCase[I] {
	if len(tags) == 0 {
		return cases
	}

	var filtered []*models.TestCase[I]
	for _, tc := range cases {
		for _, tag := range tags {
			if tc.HasTag(tag) {
				filtered = append(filtered, tc)
				break
			}
		}
	}
	return filtered
}
