package simulate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

var (
	ErrInvalidScenario = errors.New("simulate: invalid scenario")
)

type Event string

const (
	EventFailure Event = "failure"
	EventSuccess Event = "success"
	EventCheck   Event = "check"
	EventWait    Event = "wait"
)

type Step struct {
	User     string        `yaml:"user"`
	Event    Event         `yaml:"event"`
	Duration time.Duration `yaml:"duration"`
	Repeat   int           `yaml:"repeat"`
}

// Scenario is a scripted series of login events. A zero Limit or Window means the tracker default.
type Scenario struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	Steps  []Step        `yaml:"steps"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("simulate: LoadScenario: could not read file: %w", err)
	}

	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Limit < 0 {
		return fmt.Errorf("%w: limit can not be negative", ErrInvalidScenario)
	}

	if s.Window < 0 {
		return fmt.Errorf("%w: window can not be negative", ErrInvalidScenario)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}

	for i, curr := range s.Steps {
		if curr.Repeat < 0 {
			return fmt.Errorf("%w: step %d: repeat can not be negative", ErrInvalidScenario, i+1)
		}

		switch curr.Event {
		case EventFailure, EventSuccess, EventCheck:
		case EventWait:
			if curr.Duration <= 0 {
				return fmt.Errorf("%w: step %d: wait needs a positive duration", ErrInvalidScenario, i+1)
			}
		default:
			return fmt.Errorf("%w: step %d: unknown event %q", ErrInvalidScenario, i+1, curr.Event)
		}
	}

	return nil
}
