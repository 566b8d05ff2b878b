package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelnav.ai/internal/nav/progress"
)

//go:embed tuning.schema.json
var schemaJSON []byte

const schemaURL = "tuning.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

type Tuning struct {
	TickRateHz  int   `yaml:"tick_rate_hz"`
	WorldHeight int   `yaml:"world_height"`
	ViewRadius  int   `yaml:"view_radius"` // chunks
	Seed        int64 `yaml:"seed"`

	// BlockBudget is the number of blocks a search may plan to place.
	BlockBudget int `yaml:"block_budget"`
	// MaxRetries bounds consecutive follow failures before giving up.
	MaxRetries int `yaml:"max_retries"`

	Travel Travel `yaml:"travel"`
}

type Travel struct {
	BaseCost          float64 `yaml:"base_cost"`
	DiagonalCost      float64 `yaml:"diagonal_cost"`
	JumpCost          float64 `yaml:"jump_cost"`
	FallCost          float64 `yaml:"fall_cost"`
	PlaceCost         float64 `yaml:"place_cost"`
	MaxFall           int     `yaml:"max_fall"`
	ExpansionsPerStep int     `yaml:"expansions_per_step"`
	MaxExpansions     int     `yaml:"max_expansions"`
}

func Defaults() Tuning {
	tc := progress.DefaultTravelConfig()
	return Tuning{
		TickRateHz:  20,
		WorldHeight: 64,
		ViewRadius:  3,
		Seed:        1337,
		BlockBudget: 0,
		MaxRetries:  5,
		Travel: Travel{
			BaseCost:          tc.BaseCost,
			DiagonalCost:      tc.DiagonalCost,
			JumpCost:          tc.JumpCost,
			FallCost:          tc.FallCost,
			PlaceCost:         tc.PlaceCost,
			MaxFall:           tc.MaxFall,
			ExpansionsPerStep: tc.ExpansionsPerStep,
			MaxExpansions:     tc.MaxExpansions,
		},
	}
}

func (t Tuning) TravelConfig() progress.TravelConfig {
	return progress.TravelConfig{
		BaseCost:          t.Travel.BaseCost,
		DiagonalCost:      t.Travel.DiagonalCost,
		JumpCost:          t.Travel.JumpCost,
		FallCost:          t.Travel.FallCost,
		PlaceCost:         t.Travel.PlaceCost,
		MaxFall:           t.Travel.MaxFall,
		ExpansionsPerStep: t.Travel.ExpansionsPerStep,
		MaxExpansions:     t.Travel.MaxExpansions,
	}
}

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

// Parse validates a YAML document against the embedded schema and decodes it
// over Defaults, so absent keys keep their default and explicit zeros stay.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("nav.yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	js, err := json.Marshal(doc)
	if err != nil {
		return t, fmt.Errorf("nav.yaml: %w", err)
	}
	var inst any
	if err := json.Unmarshal(js, &inst); err != nil {
		return t, fmt.Errorf("nav.yaml: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return t, fmt.Errorf("tuning schema: %w", err)
	}
	if err := s.Validate(inst); err != nil {
		return t, fmt.Errorf("nav.yaml: %w", err)
	}

	t = Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("nav.yaml: %w", err)
	}
	if err := t.TravelConfig().Validate(); err != nil {
		return t, err
	}
	return t, nil
}
