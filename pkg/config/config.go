// Package config holds the recognised options of §6.4, all with documented
// defaults, loadable from YAML (gopkg.in/yaml.v3, promoted from the
// teacher's indirect dependency).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Decay holds §6.4's decay.* options.
type Decay struct {
	BaseRate         float64            `yaml:"baseRate"`
	CategoryOverride map[string]float64 `yaml:"categoryOverride"`
	DormantThreshold float64            `yaml:"dormantThreshold"`
	ArchiveThreshold float64            `yaml:"archiveThreshold"`
	MinAgeDays       float64            `yaml:"minAgeDays"`
}

// Search holds §6.4's search.* options.
type Search struct {
	LexicalWeight float64 `yaml:"lexicalWeight"`
	VectorWeight  float64 `yaml:"vectorWeight"`
	MinScore      float64 `yaml:"minScore"`
	Rerank        bool    `yaml:"rerank"`
}

// NREM holds §6.4's nrem.* options.
type NREM struct {
	MinProminence         float64 `yaml:"minProminence"`
	MaxProminence         float64 `yaml:"maxProminence"`
	MaxClusters           int     `yaml:"maxClusters"`
	MinClusterSize        int     `yaml:"minClusterSize"`
	MaxRelationsPerMemory int     `yaml:"maxRelationsPerMemory"`
}

// REM holds §6.4's rem.* options.
type REM struct {
	MaxSeeds             int     `yaml:"maxSeeds"`
	MaxSeedsPerCategory  int     `yaml:"maxSeedsPerCategory"`
	NoiseSigma           float64 `yaml:"noiseSigma"`
	SeedNoiseSigma       float64 `yaml:"seedNoiseSigma"`
	MaxSteps             int     `yaml:"maxSteps"`
	DecayFactor          float64 `yaml:"decayFactor"`
	ActivationThreshold  float64 `yaml:"activationThreshold"`
	ResultThreshold      float64 `yaml:"resultThreshold"`
	MaxCandidatesPerSeed int     `yaml:"maxCandidatesPerSeed"`
	MinJudgeScore        float64 `yaml:"minJudgeScore"`
}

// QuietHours holds §6.4's quietHours.* options. Equal Start/End disables
// quiet hours entirely.
type QuietHours struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Disabled reports whether quiet hours are turned off (start == end).
func (q QuietHours) Disabled() bool { return q.Start == q.End }

// In reports whether the given local hour (0-23) falls inside the
// wrap-around-aware quiet window.
func (q QuietHours) In(hour int) bool {
	if q.Disabled() {
		return false
	}
	if q.Start < q.End {
		return hour >= q.Start && hour < q.End
	}
	// Wraps midnight, e.g. 22..8.
	return hour >= q.Start || hour < q.End
}

// Gap holds §6.4's gap.* options.
type Gap struct {
	StaleDays            float64       `yaml:"staleDays"`
	CheckinRatio         float64       `yaml:"checkinRatio"`
	UnresolvedMaxAgeDays float64       `yaml:"unresolvedMaxAgeDays"`
	FollowUpWindow       time.Duration `yaml:"followUpWindow"`
	SignalPhrases        []string      `yaml:"signalPhrases"`
}

// Proactive holds §6.4's proactive.* options.
type Proactive struct {
	MinGap        time.Duration `yaml:"minGap"`
	MaxDeferral   time.Duration `yaml:"maxDeferral"`
}

// Gardener holds §6.4's gardener.* options.
type Gardener struct {
	LightTickInterval time.Duration `yaml:"lightTickInterval"`
	DeepTickInterval  time.Duration `yaml:"deepTickInterval"`
	SleepTickInterval time.Duration `yaml:"sleepTickInterval"`
	DisableArchival   bool          `yaml:"disableArchival"`
}

// Config is the full recognised option tree.
type Config struct {
	Decay      Decay      `yaml:"decay"`
	Search     Search     `yaml:"search"`
	NREM       NREM       `yaml:"nrem"`
	REM        REM        `yaml:"rem"`
	QuietHours QuietHours `yaml:"quietHours"`
	Gap        Gap        `yaml:"gap"`
	Proactive  Proactive  `yaml:"proactive"`
	Gardener   Gardener   `yaml:"gardener"`
}

// Default returns the full default option tree per §6.4, so tests never
// need a config file on disk.
func Default() Config {
	return Config{
		Decay: Decay{
			BaseRate: 0.02,
			CategoryOverride: map[string]float64{
				"event":        0.08,
				"fact":         0.015,
				"preference":   0.01,
				"relationship": 0.015,
				"insight":      0.02,
			},
			DormantThreshold: 0.1,
			ArchiveThreshold: 0.02,
			MinAgeDays:       14,
		},
		Search: Search{
			LexicalWeight: 0.3,
			VectorWeight:  0.7,
			MinScore:      0.35,
			Rerank:        false,
		},
		NREM: NREM{
			MinProminence:         0.05,
			MaxProminence:         0.8,
			MaxClusters:           10,
			MinClusterSize:        3,
			MaxRelationsPerMemory: 3,
		},
		REM: REM{
			MaxSeeds:             6,
			MaxSeedsPerCategory:  2,
			NoiseSigma:           0.6,
			SeedNoiseSigma:       0.3,
			MaxSteps:             4,
			DecayFactor:          0.4,
			ActivationThreshold:  0.005,
			ResultThreshold:      0.02,
			MaxCandidatesPerSeed: 8,
			MinJudgeScore:        3.0,
		},
		QuietHours: QuietHours{Start: 22, End: 8},
		Gap: Gap{
			StaleDays:            14,
			CheckinRatio:         3.0,
			UnresolvedMaxAgeDays: 7,
			FollowUpWindow:       48 * time.Hour,
			SignalPhrases: []string{
				"follow up", "circle back", "let me get back to you",
				"not sure yet", "tbd", "still deciding",
			},
		},
		Proactive: Proactive{
			MinGap:      2 * time.Hour,
			MaxDeferral: 24 * time.Hour,
		},
		Gardener: Gardener{
			LightTickInterval: 5 * time.Minute,
			DeepTickInterval:  30 * time.Minute,
			SleepTickInterval: 6 * time.Hour,
			DisableArchival:   false,
		},
	}
}

// DecayRateFor returns the per-category decay rate, falling back to
// BaseRate when no override is configured.
func (c Config) DecayRateFor(category string) float64 {
	if r, ok := c.Decay.CategoryOverride[category]; ok {
		return r
	}
	return c.Decay.BaseRate
}

// Load reads a YAML config file, starting from Default() so any field the
// file omits keeps its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
