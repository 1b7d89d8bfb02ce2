package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/entity"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/store"
	"github.com/wippyai/particle-runtime/wire"
)

// Scenario is a scripted host session loaded from TOML.
type Scenario struct {
	URLs map[string]string `toml:"urls"`
	// Particle is the registered particle type to start.
	Particle string `toml:"particle"`
	ID       string `toml:"id"`
	// Module is an optional path to a wasm particle module, relative to
	// the scenario file.
	Module  string         `toml:"module"`
	Handles []Connection   `toml:"handles"`
	Store   []StoredEntity `toml:"store"`
	Steps   []Step         `toml:"steps"`

	// Dir is the directory containing the scenario file (set at load time).
	Dir string `toml:"-"`
}

// EntitySpec describes an entity by field values.
type EntitySpec struct {
	Fields map[string]any `toml:"fields"`
	ID     string         `toml:"id"`
	// Schema defaults to the schema of the handle the entity is sent to.
	Schema string `toml:"schema"`
}

// RefSpec describes a reference.
type RefSpec struct {
	ID         string `toml:"id"`
	StorageKey string `toml:"storage_key"`
}

// StoredEntity seeds the host store.
type StoredEntity struct {
	EntitySpec
	StorageKey string `toml:"storage_key"`
}

// Step is one scripted host call.
//
//	op = "sync" | "update" | "event" | "pump" | "template" | "model" | "dispose"
type Step struct {
	Entity   *EntitySpec  `toml:"entity"`
	Ref      *RefSpec     `toml:"ref"`
	Raw      *string      `toml:"raw"`
	Op       string       `toml:"op"`
	Handle   string       `toml:"handle"`
	Slot     string       `toml:"slot"`
	Handler  string       `toml:"handler"`
	Expect   string       `toml:"expect_error"`
	Entities []EntitySpec `toml:"entities"`
	Refs     []RefSpec    `toml:"refs"`
	Removed  []EntitySpec `toml:"removed"`
	Reverse  bool         `toml:"reverse"`
}

var stepOps = map[string]bool{
	"sync": true, "update": true, "event": true, "pump": true,
	"template": true, "model": true, "dispose": true,
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	s.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario TOML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if _, err := toml.Decode(string(data), &s); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid scenario TOML")
	}
	if s.Particle == "" && s.Module == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, "scenario needs a particle type or a module")
	}
	for i, st := range s.Steps {
		if !stepOps[st.Op] {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("steps", fmt.Sprint(i)).
				Detail("unknown op %q", st.Op).
				Build()
		}
	}
	return &s, nil
}

// ModulePath returns the module path resolved against the scenario
// directory, or "" when the scenario runs a registered particle.
func (s *Scenario) ModulePath() string {
	if s.Module == "" || filepath.IsAbs(s.Module) {
		return s.Module
	}
	return filepath.Join(s.Dir, s.Module)
}

// Options builds runtime options with the store seeded from the scenario.
func (s *Scenario) Options(catalog *entity.Catalog) (Options, error) {
	st := store.New()
	for i, e := range s.Store {
		enc, err := buildEntity(catalog, e.EntitySpec, "")
		if err != nil {
			return Options{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, fmt.Sprintf("store entry %d", i))
		}
		if _, err := st.Put(e.StorageKey, e.ID, enc); err != nil {
			return Options{}, err
		}
	}
	return Options{ID: s.ID, Store: st, URLs: s.URLs}, nil
}

// StepResult is the outcome of one step.
type StepResult struct {
	Err      error
	Model    particleruntime.Dictionary
	Template string
	Messages []Message
	Step     Step
	Index    int
	Pumped   int
}

// Failed reports whether the step failed other than as expected.
func (r StepResult) Failed() bool {
	if r.Step.Expect == "" {
		return r.Err != nil
	}
	e, ok := r.Err.(*errors.Error)
	return !ok || string(e.Kind) != r.Step.Expect
}

// Runner executes a scenario's steps against a started runtime.
type Runner struct {
	sc      *Scenario
	rt      *Runtime
	catalog *entity.Catalog
	next    int
}

// NewRunner creates a runner. The runtime must already be started.
func NewRunner(sc *Scenario, rt *Runtime, catalog *entity.Catalog) *Runner {
	return &Runner{sc: sc, rt: rt, catalog: catalog}
}

// Done reports whether every step has run.
func (r *Runner) Done() bool { return r.next >= len(r.sc.Steps) }

// Position returns the index of the next step.
func (r *Runner) Position() int { return r.next }

// Next runs the next step.
func (r *Runner) Next(ctx context.Context) (StepResult, bool) {
	if r.Done() {
		return StepResult{}, false
	}
	i := r.next
	r.next++
	res := r.run(ctx, r.sc.Steps[i])
	res.Index = i
	res.Messages = r.rt.Drain()
	return res, true
}

// Run executes the remaining steps and returns the first unexpected
// failure.
func (r *Runner) Run(ctx context.Context) ([]StepResult, error) {
	var out []StepResult
	var first error
	for {
		res, ok := r.Next(ctx)
		if !ok {
			return out, first
		}
		out = append(out, res)
		if res.Failed() && first == nil {
			if res.Err != nil {
				first = fmt.Errorf("step %d (%s): %w", res.Index, res.Step.Op, res.Err)
			} else {
				first = fmt.Errorf("step %d (%s): expected %s error", res.Index, res.Step.Op, res.Step.Expect)
			}
		}
	}
}

func (r *Runner) run(ctx context.Context, st Step) StepResult {
	res := StepResult{Step: st}
	switch st.Op {
	case "sync":
		enc, err := r.payload(st)
		if err != nil {
			res.Err = err
			return res
		}
		res.Err = r.rt.Sync(st.Handle, enc)
	case "update":
		enc, err := r.payload(st)
		if err != nil {
			res.Err = err
			return res
		}
		removed, err := r.list(st.Handle, st.Removed, nil)
		if err != nil {
			res.Err = err
			return res
		}
		res.Err = r.rt.Update(st.Handle, enc, removed)
	case "event":
		res.Err = r.rt.FireEvent(st.Slot, st.Handler)
	case "pump":
		order := FIFO
		if st.Reverse {
			order = LIFO
		}
		res.Pumped, res.Err = r.rt.Pump(ctx, order)
	case "template":
		res.Template, res.Err = r.rt.Template(st.Slot)
	case "model":
		res.Model, res.Err = r.rt.Model(st.Slot)
	case "dispose":
		res.Err = r.rt.Dispose()
	}
	return res
}

// payload encodes the value a sync or update step carries.
func (r *Runner) payload(st Step) (string, error) {
	switch {
	case st.Raw != nil:
		return *st.Raw, nil
	case st.Entities != nil || st.Refs != nil:
		return r.list(st.Handle, st.Entities, st.Refs)
	case st.Entity != nil:
		return buildEntity(r.catalog, *st.Entity, r.schemaOf(st.Handle))
	case st.Ref != nil:
		return wire.Encode(entity.RefValue{ID: st.Ref.ID, StorageKey: st.Ref.StorageKey}), nil
	}
	return "", nil
}

func (r *Runner) list(handle string, specs []EntitySpec, refs []RefSpec) (string, error) {
	if len(specs) == 0 && len(refs) == 0 {
		return "", nil
	}
	items := make([]string, 0, len(specs)+len(refs))
	for _, spec := range specs {
		enc, err := buildEntity(r.catalog, spec, r.schemaOf(handle))
		if err != nil {
			return "", err
		}
		items = append(items, enc)
	}
	for _, ref := range refs {
		items = append(items, wire.Encode(entity.RefValue{ID: ref.ID, StorageKey: ref.StorageKey}))
	}
	return wire.EncodeList(items), nil
}

func (r *Runner) schemaOf(handle string) string {
	for _, c := range r.sc.Handles {
		if c.Handle == handle {
			return c.Schema
		}
	}
	return ""
}

func buildEntity(catalog *entity.Catalog, spec EntitySpec, fallback string) (string, error) {
	name := spec.Schema
	if name == "" {
		name = fallback
	}
	if catalog == nil {
		return "", errors.InvalidInput(errors.PhaseConfig, "no schema catalog for entity values")
	}
	schema, err := catalog.Lookup(name)
	if err != nil {
		return "", err
	}
	rec := entity.NewDynamic(schema)
	rec.SetID(spec.ID)

	names := make([]string, 0, len(spec.Fields))
	for k := range spec.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := rec.Set(k, fieldValue(spec.Fields[k])); err != nil {
			return "", err
		}
	}
	return entity.Encode(rec), nil
}

// fieldValue maps TOML values onto the types Record.Set accepts. Inline
// tables with id and storage_key become references.
func fieldValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	id, _ := m["id"].(string)
	key, _ := m["storage_key"].(string)
	return entity.RefValue{ID: id, StorageKey: key}
}
