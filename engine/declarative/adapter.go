package declarative

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/engine/sink"
)

// Ensemble invokes the external LLM pipeline named by a spec's `ensemble`
// field (section 4.5), merging its JSON response into the template
// context. Declared locally, mirroring engine/enrich.Embedder, so this
// package does not import engine/ensemble and create a cycle.
type Ensemble interface {
	Invoke(ctx context.Context, name string, payload map[string]any) (map[string]any, error)
}

// ensembleResultKey is the conventional template-context key an ensemble's
// merged response is exposed under (section 4.5: "merge its JSON response
// into the template context under a conventional key").
const ensembleResultKey = "ensemble"

// Adapter runs a parsed Spec against the Adapter contract: unmarshal the
// payload, optionally invoke the ensemble, build and submit the Emission.
type Adapter struct {
	adapter.Base
	Spec     *Spec
	Ensemble Ensemble
}

// New wraps spec as an adapter.Adapter. ensemble may be nil if spec.Ensemble
// is empty.
func New(spec *Spec, ensemble Ensemble) *Adapter {
	return &Adapter{Spec: spec, Ensemble: ensemble}
}

func (a *Adapter) ID() string        { return a.Spec.AdapterID }
func (a *Adapter) InputKind() string { return a.Spec.InputKind }

func (a *Adapter) Process(ctx context.Context, input adapter.Input, sk *sink.Sink) (sink.EmitResult, error) {
	var payload map[string]any
	if err := json.Unmarshal(input.Data, &payload); err != nil {
		return sink.EmitResult{}, fmt.Errorf("%w: %s", plexerr.ErrInvalidInput, err)
	}

	if a.Spec.Ensemble != "" {
		if a.Ensemble == nil {
			return sink.EmitResult{}, fmt.Errorf("declarative adapter %q: ensemble %q configured but no Ensemble is wired", a.ID(), a.Spec.Ensemble)
		}
		merged, err := a.Ensemble.Invoke(ctx, a.Spec.Ensemble, payload)
		if err != nil {
			return sink.EmitResult{}, fmt.Errorf("declarative adapter %q: ensemble %q: %w", a.ID(), a.Spec.Ensemble, err)
		}
		payload[ensembleResultKey] = merged
	}

	em, err := Build(a.Spec, payload, a.ID(), input.ContextID)
	if err != nil {
		return sink.EmitResult{}, err
	}
	return sk.Emit(em)
}
