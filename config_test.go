package cpctt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLnsConfig(t *testing.T) {
	text := `instance comp01.ectt
init-free-variables 3
max-free-variables 0.25
ms-per-variable 50
max-idle-iterations 40
random-branching true
random-relaxation 0.1
temperature 15.5
neighbors-accepted 7
delta-probability 0.02
min-temperature 0.8
cooling-rate 0.95
`
	cfg, err := ParseLnsConfig(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, "comp01.ectt", cfg.Instance)
	assert.Equal(t, 3, cfg.InitFreeVariables)
	assert.Equal(t, 0.25, cfg.MaxFreeVariables)
	assert.Equal(t, 50, cfg.MsPerVariable)
	assert.Equal(t, 40, cfg.MaxIdleIterations)
	assert.True(t, cfg.RandomBranching)
	assert.Equal(t, 0.1, cfg.RandomRelaxation)
	assert.Equal(t, 15.5, cfg.Temperature)
	assert.Equal(t, 7, cfg.NeighborsAccepted)
	assert.Equal(t, 0.02, cfg.DeltaProbability)
	assert.Equal(t, 0.8, cfg.MinTemperature)
	assert.Equal(t, 0.95, cfg.CoolingRate)
}

// neighbors-accepted feeds the cooldown threshold and must leave the
// temperature untouched
func TestParseLnsConfigNeighborsAcceptedMapping(t *testing.T) {
	cfg, err := ParseLnsConfig(strings.NewReader("neighbors-accepted 99\n"))
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.NeighborsAccepted)
	assert.Equal(t, DefaultLnsConfig().Temperature, cfg.Temperature)
}

func TestParseLnsConfigUnknownKeysIgnored(t *testing.T) {
	cfg, err := ParseLnsConfig(strings.NewReader("some-future-knob 12\ninstance x.ctt\n"))
	require.NoError(t, err)
	assert.Equal(t, "x.ctt", cfg.Instance)
}

func TestParseLnsConfigDefaults(t *testing.T) {
	cfg, err := ParseLnsConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultLnsConfig(), cfg)
}

func TestParseLnsConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"dangling key", "instance"},
		{"bad integer", "init-free-variables many"},
		{"bad float", "cooling-rate fast"},
		{"bad bool", "random-branching maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLnsConfig(strings.NewReader(tc.text))
			assert.Error(t, err)
		})
	}
}
