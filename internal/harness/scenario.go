package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mastodon/mastodon-ios-sub005/internal/engine"
	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/gateway"
)

// Scenario is one scripted controller session.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Feed selects the controller's params. Defaults to the home timeline
	// of testutil.Domain.
	Feed *feed.Params `yaml:"feed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step issues one command after queueing gateway responses.
type Step struct {
	// Respond is queued on the scripted gateway before the command runs.
	Respond []Response `yaml:"respond,omitempty"`

	// Command is a controller command name: refresh, load_older,
	// resolve_gap, retry, dismiss_gap or reset.
	Command string `yaml:"command"`

	// Feed is the new params of a reset. Defaults to the scenario feed.
	Feed *feed.Params `yaml:"feed,omitempty"`

	// Expect is checked once the controller has settled.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Response is one scripted gateway reply.
type Response struct {
	// Kind is the gateway call it answers: newest, older or between.
	Kind string `yaml:"kind"`

	// Items are post ids, newest first.
	Items []string `yaml:"items,omitempty"`

	// Cursor is the page's older-cursor.
	Cursor string `yaml:"cursor,omitempty"`

	// Error fails the call instead: transport or logical.
	Error string `yaml:"error,omitempty"`
}

// Expect lists the observations a step must produce. Empty fields are not
// checked.
type Expect struct {
	// Rejected expects the command to be refused by the current state.
	Rejected bool `yaml:"rejected,omitempty"`

	// State is the pagination state, e.g. "Idle" or "Fail(c1)".
	State string `yaml:"state,omitempty"`

	// Snapshot is the rendered snapshot, e.g. "[P1 <gap anchor=P1> P2]".
	Snapshot string `yaml:"snapshot,omitempty"`

	// Gap is the open gap's anchor, or "none".
	Gap string `yaml:"gap,omitempty"`

	// Failure is the error code of the step's last failure event, or "none".
	Failure string `yaml:"failure,omitempty"`
}

// Scripted error kinds.
const (
	ErrorTransport = "transport"
	ErrorLogical   = "logical"
)

// NoneExpected marks an expectation of absence for Gap and Failure.
const NoneExpected = "none"

var responseKinds = []gateway.CallKind{gateway.CallNewest, gateway.CallOlder, gateway.CallBetween}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Command == "" {
			return fmt.Errorf("steps[%d]: command is required", i)
		}
		kind, err := engine.ParseCommand(step.Command)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Feed != nil && kind != engine.CommandReset {
			return fmt.Errorf("steps[%d]: feed is only allowed on reset", i)
		}
		for j, r := range step.Respond {
			if err := validateResponse(r); err != nil {
				return fmt.Errorf("steps[%d].respond[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateResponse(r Response) error {
	if !slices.Contains(responseKinds, gateway.CallKind(r.Kind)) {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	switch r.Error {
	case "":
	case ErrorTransport, ErrorLogical:
		if len(r.Items) > 0 || r.Cursor != "" {
			return errors.New("error responses carry no items or cursor")
		}
	default:
		return fmt.Errorf("unknown error %q", r.Error)
	}
	return nil
}
