// Package declarative interprets YAML-specified adapters (section 4.5): an
// ordered list of primitive invocations over a template-interpolated view
// of the input payload, producing the same Emission a hand-coded adapter
// would build. The primitive set is closed; dual-obligation enforcement
// happens once, at registration time.
package declarative

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Spec is the parsed shape of one YAML adapter definition.
type Spec struct {
	AdapterID    string                   `yaml:"adapter_id"`
	InputKind    string                   `yaml:"input_kind"`
	InputSchema  map[string]any           `yaml:"input_schema"`
	Ensemble     string                   `yaml:"ensemble"`
	Emit         []Primitive              `yaml:"emit"`
	Enrichments  []EnrichmentDeclaration  `yaml:"enrichments"`
}

// EnrichmentDeclaration names a parameterized built-in enrichment to
// register alongside this adapter, with its constructor parameters as a
// generic bag (interpreted by engine/ingest's wiring code, not here).
type EnrichmentDeclaration struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// Primitive is one step of the `emit` list. Exactly one of the typed
// fields is populated, selected by Op.
type Primitive struct {
	Op string `yaml:"op"`

	// create_node
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Dimension   string         `yaml:"dimension"`
	ContentType string         `yaml:"content_type"`
	Properties  map[string]any `yaml:"properties"`

	// create_edge
	Source       string  `yaml:"source"`
	Target       string  `yaml:"target"`
	Relationship string  `yaml:"relationship"`
	Contribution float64 `yaml:"contribution"`

	// for_each
	Over string      `yaml:"over"`
	As   string      `yaml:"as"`
	Do   []Primitive `yaml:"do"`

	// hash_id
	Inputs []string `yaml:"inputs"`

	// create_provenance
	ChainID        string `yaml:"chain_id"`
	MarkID         string `yaml:"mark_id"`
	AnnotationText string `yaml:"annotation"`

	// update_properties
	TargetNode string `yaml:"target_node"`
}

// Closed primitive op names (section 4.5: "the set is closed").
const (
	OpCreateNode        = "create_node"
	OpCreateEdge        = "create_edge"
	OpForEach           = "for_each"
	OpIDTemplate        = "id_template"
	OpHashID            = "hash_id"
	OpCreateProvenance  = "create_provenance"
	OpUpdateProperties  = "update_properties"
)

var validOps = map[string]bool{
	OpCreateNode:       true,
	OpCreateEdge:       true,
	OpForEach:          true,
	OpIDTemplate:       true,
	OpHashID:           true,
	OpCreateProvenance: true,
	OpUpdateProperties: true,
}

// Parse decodes a YAML adapter spec and validates its primitive ops and
// the dual-obligation invariant before returning.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("declarative: parse %q: %w", string(data[:min(len(data), 40)]), err)
	}
	if spec.AdapterID == "" {
		return nil, fmt.Errorf("declarative: adapter_id is required")
	}
	if spec.InputKind == "" {
		return nil, fmt.Errorf("declarative: input_kind is required")
	}
	if err := validatePrimitives(spec.Emit); err != nil {
		return nil, err
	}
	if err := enforceDualObligation(spec.Emit); err != nil {
		return nil, fmt.Errorf("declarative adapter %q: %w", spec.AdapterID, err)
	}
	return &spec, nil
}

func validatePrimitives(prims []Primitive) error {
	for _, p := range prims {
		if !validOps[p.Op] {
			return fmt.Errorf("declarative: unknown primitive op %q", p.Op)
		}
		if p.Op == OpForEach {
			if err := validatePrimitives(p.Do); err != nil {
				return err
			}
		}
	}
	return nil
}

// enforceDualObligation rejects a spec whose emit list creates a
// semantic-dimension node without also creating provenance (section 4.5,
// section 3: "every adapter emission creating at least one semantic
// dimension node ... also emits a mark and chain"). A create_provenance
// primitive anywhere in the emit list (including nested under for_each)
// satisfies the obligation for the whole spec.
func enforceDualObligation(prims []Primitive) error {
	createsSemantic := false
	createsProvenance := false
	var walk func([]Primitive)
	walk = func(ps []Primitive) {
		for _, p := range ps {
			switch p.Op {
			case OpCreateNode:
				if p.Dimension == "semantic" {
					createsSemantic = true
				}
			case OpCreateProvenance:
				createsProvenance = true
			case OpForEach:
				walk(p.Do)
			}
		}
	}
	walk(prims)
	if createsSemantic && !createsProvenance {
		return fmt.Errorf("dual obligation violated: emits a semantic node with no create_provenance primitive")
	}
	return nil
}
