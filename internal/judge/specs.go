// Package judge implements the default LLM-as-a-judge evaluator: it
// assembles the judge's system prompt from a directory of markdown
// evaluation specs and scores feature output through a chat-completion
// client, decoding the reply into the plugin's column type.
package judge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The markdown evaluation specs a judge specs directory must contain.
const (
	ScoringRubricFile     = "scoring_rubric.md"
	AdditionalContextFile = "additional_context.md"
	ConceptDefinitionFile = "concept_definition.md"
	GoldenDatasetFile     = "golden_dataset.md"
	SafetyConstraintsFile = "safety_constraints.md"
	StyleGuidelinesFile   = "style_guidelines.md"
)

// specFileOrder fixes the order spec contents are concatenated into the
// system prompt.
var specFileOrder = []string{
	ScoringRubricFile,
	AdditionalContextFile,
	ConceptDefinitionFile,
	GoldenDatasetFile,
	SafetyConstraintsFile,
	StyleGuidelinesFile,
}

// SpecSet holds the loaded evaluation spec contents, keyed by file name.
type SpecSet struct {
	specs map[string]string
}

// LoadSpecs reads every evaluation spec from dir. Each file must exist and
// parse as markdown with at least one heading; a rubric without structure is
// almost always a misconfigured specs directory.
func LoadSpecs(dir string) (*SpecSet, error) {
	md := goldmark.New()
	specs := make(map[string]string, len(specFileOrder))

	for _, name := range specFileOrder {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec %s: %w", name, err)
		}

		doc := md.Parser().Parse(text.NewReader(data))
		if !hasHeading(doc) {
			return nil, fmt.Errorf("spec %s has no markdown headings", name)
		}

		specs[name] = string(data)
	}

	return &SpecSet{specs: specs}, nil
}

// hasHeading walks the parsed document looking for at least one heading node.
func hasHeading(doc ast.Node) bool {
	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Heading); ok {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// Get returns the content of one spec file.
func (s *SpecSet) Get(name string) (string, bool) {
	content, ok := s.specs[name]
	return content, ok
}

// SystemPrompt concatenates every spec in a fixed order, separated by blank
// lines, for use as the judge's system instructions.
func (s *SpecSet) SystemPrompt() string {
	var sb strings.Builder
	for _, name := range specFileOrder {
		sb.WriteString(s.specs[name])
		sb.WriteString("\n\n")
	}
	return sb.String()
}
