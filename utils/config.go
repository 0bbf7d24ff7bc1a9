package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cs-au-dk/symbex/utils/slices"

	"gopkg.in/yaml.v2"
)

// Config collects everything that tunes a run: exploration budgets, the
// enabled detectors and the API tables the detectors match calls against.
type Config struct {
	Budget struct {
		Steps   int           `yaml:"steps"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"budget"`
	LoopBound   int    `yaml:"loop-bound"`
	CallDepth   int    `yaml:"call-depth"`
	Strategy    string `yaml:"strategy"`
	MergeStates bool   `yaml:"merge-states"`
	Workers     int    `yaml:"workers"`

	// Rule identifiers of the enabled detectors. Empty enables all of them.
	Detectors []string `yaml:"detectors"`

	Resources ResourceTable `yaml:"resources"`

	// Operations that consume their receiver. Using a consumed receiver again is a defect.
	SingleUse []string `yaml:"single-use"`
}

// ResourceTable names the functions that acquire and release resources.
// Names are fully qualified as printed by go/ssa, e.g. "os.Open" or
// "(*os.File).Close".
type ResourceTable struct {
	// Functions whose first result is a freshly opened resource.
	Openers []string `yaml:"openers"`
	// Methods that open their receiver, such as locks.
	ReceiverOpeners []string `yaml:"receiver-openers"`
	// Methods that close their receiver.
	Closers []string `yaml:"closers"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

func DefaultConfig() Config {
	var cfg Config
	cfg.Budget.Steps = 10000
	cfg.Budget.Timeout = 10 * time.Second
	cfg.LoopBound = 5
	cfg.CallDepth = 8
	cfg.Strategy = "dfs"
	cfg.Resources = ResourceTable{
		Openers: []string{
			"os.Open",
			"os.Create",
			"os.OpenFile",
			"net.Dial",
			"net.Listen",
		},
		ReceiverOpeners: []string{
			"(*sync.Mutex).Lock",
			"(*sync.RWMutex).Lock",
		},
		Closers: []string{
			"(*os.File).Close",
			"(net.Conn).Close",
			"(net.Listener).Close",
			"(io.Closer).Close",
			"(io.ReadCloser).Close",
			"(*sync.Mutex).Unlock",
			"(*sync.RWMutex).Unlock",
		},
	}
	cfg.SingleUse = []string{
		"(*os/exec.Cmd).Run",
		"(*os/exec.Cmd).Start",
		"(*os/exec.Cmd).Output",
		"(*os/exec.Cmd).CombinedOutput",
	}
	return cfg
}

// LoadConfig reads a YAML configuration. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return cfg, ParseConfig(contents, &cfg)
}

// ParseConfig decodes YAML contents into cfg and validates the result.
func ParseConfig(contents []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(contents, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

func (cfg Config) Validate() error {
	switch {
	case cfg.Budget.Steps <= 0:
		return fmt.Errorf("%w: budget.steps must be positive, got %d", ErrInvalidConfig, cfg.Budget.Steps)
	case cfg.Budget.Timeout < 0:
		return fmt.Errorf("%w: budget.timeout must not be negative", ErrInvalidConfig)
	case cfg.LoopBound < 1:
		return fmt.Errorf("%w: loop-bound must be at least 1, got %d", ErrInvalidConfig, cfg.LoopBound)
	case cfg.CallDepth < 0:
		return fmt.Errorf("%w: call-depth must not be negative", ErrInvalidConfig)
	}

	if _, ok := slices.Find(strategies, func(s struct{ flag, explanation string }) bool {
		return s.flag == cfg.Strategy
	}); ok {
		return nil
	}
	return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
}

// DetectorEnabled reports whether the detector with the given rule should run.
func (cfg Config) DetectorEnabled(rule string) bool {
	if len(cfg.Detectors) == 0 {
		return true
	}
	return slices.OneOf(rule, cfg.Detectors...)
}
