package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/strategy"
)

// Scenario defines a conformance scenario: a seeded store, a strategy, a
// sequence of commands and the expected end state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Strategy is manual, optimistic or invalidate.
	Strategy string `yaml:"strategy"`

	// GenerationGuard enables stale-rollback protection.
	GenerationGuard bool `yaml:"generation_guard,omitempty"`

	// Seed users are written to the store before the scenario starts and
	// form the initial view. They receive ids user-1, user-2, ...
	Seed []entity.Draft `yaml:"seed,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Expect is checked after every step has settled.
	Expect Expect `yaml:"expect"`
}

// Step operations.
const (
	StepRefresh = "refresh"
	StepCreate  = "create"
	StepUpdate  = "update"
	StepDelete  = "delete"
	StepSettle  = "settle"
)

// Step is one command issued to the strategy.
type Step struct {
	// Op is refresh, create, update, delete or settle.
	Op string `yaml:"op"`

	// ID targets update and delete.
	ID string `yaml:"id,omitempty"`

	// Fields are the draft (create) or patch (update) fields.
	Fields map[string]string `yaml:"fields,omitempty"`

	// Fail injects a gateway failure kind for this step's call.
	Fail string `yaml:"fail,omitempty"`

	// Async leaves the gateway call parked so later steps overlap it.
	// Parked calls are released by a settle step or at the end.
	Async bool `yaml:"async,omitempty"`

	// Reverse makes a settle step release parked calls newest first.
	Reverse bool `yaml:"reverse,omitempty"`
}

// Expect describes the end state. Unset fields are not checked.
type Expect struct {
	// View is the expected final view, in order.
	View []entity.User `yaml:"view,omitempty"`

	// Failures lists reported failures as "op:KIND", in report order.
	Failures []string `yaml:"failures,omitempty"`

	// Calls is the expected number of gateway calls per operation.
	// Operations not listed are expected to have zero calls.
	Calls map[string]int `yaml:"calls,omitempty"`

	// Pending is the expected number of unsettled mutations.
	Pending *int `yaml:"pending,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := strategy.ParseKind(s.Strategy); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, d := range s.Seed {
		if missing := d.Missing(); len(missing) > 0 {
			return fmt.Errorf("seed[%d]: missing %v", i, missing)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for op := range s.Expect.Calls {
		switch op {
		case gateway.OpList, gateway.OpCreate, gateway.OpUpdate, gateway.OpDelete:
		default:
			return fmt.Errorf("expect.calls: unknown operation %q", op)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case StepRefresh, StepCreate, StepUpdate, StepDelete, StepSettle:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	for field := range step.Fields {
		switch field {
		case entity.FieldName, entity.FieldEmail, entity.FieldPhone:
		default:
			return fmt.Errorf("unknown field %q", field)
		}
	}

	if step.Fail != "" {
		if step.Op == StepSettle {
			return fmt.Errorf("fail is not allowed on settle")
		}
		if _, err := gateway.ParseKind(step.Fail); err != nil {
			return err
		}
	}
	if step.Async && (step.Op == StepRefresh || step.Op == StepSettle) {
		return fmt.Errorf("async is only allowed on mutations")
	}
	if step.Reverse && step.Op != StepSettle {
		return fmt.Errorf("reverse is only allowed on settle")
	}
	return nil
}

// draft builds the create input from step fields.
func (s Step) draft() entity.Draft {
	return entity.Draft{
		Name:  s.Fields[entity.FieldName],
		Email: s.Fields[entity.FieldEmail],
		Phone: s.Fields[entity.FieldPhone],
	}
}

// patch builds the update input from the fields present in the step.
func (s Step) patch() entity.Patch {
	var p entity.Patch
	if v, ok := s.Fields[entity.FieldName]; ok {
		p.Name = entity.String(v)
	}
	if v, ok := s.Fields[entity.FieldEmail]; ok {
		p.Email = entity.String(v)
	}
	if v, ok := s.Fields[entity.FieldPhone]; ok {
		p.Phone = entity.String(v)
	}
	return p
}

// gatewayOp maps a step to the gateway operation its call uses.
func (s Step) gatewayOp() string {
	switch s.Op {
	case StepRefresh:
		return gateway.OpList
	case StepCreate:
		return gateway.OpCreate
	case StepUpdate:
		return gateway.OpUpdate
	case StepDelete:
		return gateway.OpDelete
	default:
		return ""
	}
}
