package cpctt

import (
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// LnsConfig carries every knob of the meta-engine as an explicit value.
type LnsConfig struct {
	// Instance is the path of the instance file to solve.
	Instance string

	// InitFreeVariables is the starting relaxation intensity.
	InitFreeVariables int

	// MaxFreeVariables caps the intensity as a fraction of the lecture count.
	MaxFreeVariables float64

	// MsPerVariable scales each inner search's deadline by its freed count.
	MsPerVariable int

	// MaxIdleIterations is how long the engine tolerates stagnation before
	// raising the intensity (and, at the cap, perturbing).
	MaxIdleIterations int

	// RandomBranching switches the initial construction to the randomized
	// branching; neighbors always branch randomly.
	RandomBranching bool

	// RandomRelaxation is the probability of a purely random relaxation.
	RandomRelaxation float64

	// Temperature is the starting SA temperature.
	Temperature float64

	// NeighborsAccepted is the cooldown threshold: accepted neighbors per
	// temperature step.
	NeighborsAccepted int

	// DeltaProbability is the p in the SA slack ceil(-T*ln(p)).
	// Non-positive means p is sampled uniformly from (0, 1] instead.
	DeltaProbability float64

	MinTemperature float64
	CoolingRate    float64

	// Policy selects the constrain style for neighbors.
	Policy ConstrainPolicy

	// Workers is the worker count of the inner searches.
	Workers int

	// Seed drives every stochastic choice of one engine.
	Seed uint64

	// IterationCap bounds the number of neighbor iterations; zero leaves
	// termination to the wall clock alone.
	IterationCap int
}

// DefaultLnsConfig returns the tuned defaults.
func DefaultLnsConfig() LnsConfig {
	return LnsConfig{
		InitFreeVariables: 1,
		MaxFreeVariables:  0.15,
		MsPerVariable:     10,
		MaxIdleIterations: 100,
		RandomRelaxation:  0.0,
		Temperature:       20,
		NeighborsAccepted: 20,
		DeltaProbability:  0.05,
		MinTemperature:    0.4,
		CoolingRate:       0.98,
		Policy:            POLICY_SA,
		Workers:           1,
		Seed:              1,
	}
}

// LoadConfig reads a configuration file into defaults.
func LoadConfig(path string) (LnsConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return LnsConfig{}, errors.Wrapf(err, "could not open configuration file %s", path)
	}
	defer f.Close()
	cfg, err := ParseLnsConfig(f)
	if err != nil {
		return LnsConfig{}, errors.Wrapf(err, "malformed configuration file %s", path)
	}
	return cfg, nil
}

// ParseLnsConfig reads whitespace-separated "key value" lines. Unknown keys
// are ignored so configurations stay portable across solver revisions.
func ParseLnsConfig(r io.Reader) (LnsConfig, error) {
	cfg := DefaultLnsConfig()
	t := newTokenReader(r)
	for {
		key, err := t.word()
		if err != nil {
			break // end of file
		}
		value, err := t.word()
		if err != nil {
			return cfg, errors.Errorf("key %q has no value", key)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (cfg *LnsConfig) set(key, value string) error {
	var err error
	switch key {
	case "instance":
		cfg.Instance = value
	case "init-free-variables":
		cfg.InitFreeVariables, err = strconv.Atoi(value)
	case "max-free-variables":
		cfg.MaxFreeVariables, err = strconv.ParseFloat(value, 64)
	case "ms-per-variable":
		cfg.MsPerVariable, err = strconv.Atoi(value)
	case "max-idle-iterations":
		cfg.MaxIdleIterations, err = strconv.Atoi(value)
	case "random-branching":
		cfg.RandomBranching, err = parseBool(value)
	case "random-relaxation":
		cfg.RandomRelaxation, err = strconv.ParseFloat(value, 64)
	case "temperature":
		cfg.Temperature, err = strconv.ParseFloat(value, 64)
	case "neighbors-accepted":
		// cooldown threshold, not to be conflated with the temperature
		cfg.NeighborsAccepted, err = strconv.Atoi(value)
	case "delta-probability":
		cfg.DeltaProbability, err = strconv.ParseFloat(value, 64)
	case "min-temperature":
		cfg.MinTemperature, err = strconv.ParseFloat(value, 64)
	case "cooling-rate":
		cfg.CoolingRate, err = strconv.ParseFloat(value, 64)
	default:
		// unknown keys are ignored
	}
	if err != nil {
		return errors.Errorf("invalid value %q for key %q", value, key)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch value {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, errors.Errorf("not a boolean: %q", value)
}
