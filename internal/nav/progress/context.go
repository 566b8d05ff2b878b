package progress

import (
	"errors"
	"fmt"
	"math"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
)

var (
	ErrInvalidBudget = errors.New("progress: block budget must be >= 0")
	ErrInvalidConfig = errors.New("progress: invalid travel config")
)

// MoveContext is a search-graph node.
type MoveContext struct {
	Location       model.BlockLocation
	BlocksCanPlace int
}

func NewMoveContext(loc model.BlockLocation, blocksCanPlace int) (MoveContext, error) {
	if blocksCanPlace < 0 {
		return MoveContext{}, fmt.Errorf("%w: got %d", ErrInvalidBudget, blocksCanPlace)
	}
	return MoveContext{Location: loc, BlocksCanPlace: blocksCanPlace}, nil
}

type MoveKind uint8

const (
	MoveStart MoveKind = iota
	MoveWalk
	MoveDiagonal
	MoveAscend
	MoveDescend
	MovePillar
	MoveBridge
)

func (k MoveKind) String() string {
	switch k {
	case MoveWalk:
		return "walk"
	case MoveDiagonal:
		return "diagonal"
	case MoveAscend:
		return "ascend"
	case MoveDescend:
		return "descend"
	case MovePillar:
		return "pillar"
	case MoveBridge:
		return "bridge"
	default:
		return "start"
	}
}

// MoveState is where a record resolves to for execution.
type MoveState struct {
	Location model.Location
}

// MoveRecord is one accepted search-graph edge: the node it reaches and how.
type MoveRecord struct {
	Context MoveContext
	State   MoveState
	Kind    MoveKind
}

// Record builds the record for standing at ctx.
func Record(ctx MoveContext, kind MoveKind) MoveRecord {
	return MoveRecord{
		Context: ctx,
		State:   MoveState{Location: ctx.Location.Center()},
		Kind:    kind,
	}
}

// Edge is a neighbor plus the cost of reaching it.
type Edge struct {
	Record MoveRecord
	Cost   float64
}

// Progression is the result of expanding one node. A nil Movements slice is
// a dead end.
type Progression struct {
	Movements []Edge
}

func (p Progression) Dead() bool { return len(p.Movements) == 0 }

// TravelConfig holds the movement policy knobs.
type TravelConfig struct {
	BaseCost     float64
	DiagonalCost float64
	JumpCost     float64
	FallCost     float64 // per block fallen
	PlaceCost    float64
	MaxFall      int

	// ExpansionsPerStep bounds the work of one Pathfinder.Step call.
	ExpansionsPerStep int
	// MaxExpansions bounds the whole search.
	MaxExpansions int
}

func DefaultTravelConfig() TravelConfig {
	return TravelConfig{
		BaseCost:          1,
		DiagonalCost:      math.Sqrt2,
		JumpCost:          0.5,
		FallCost:          0.2,
		PlaceCost:         3,
		MaxFall:           3,
		ExpansionsPerStep: 200,
		MaxExpansions:     20000,
	}
}

func (c TravelConfig) Validate() error {
	switch {
	case c.BaseCost <= 0:
		return fmt.Errorf("%w: base cost %v", ErrInvalidConfig, c.BaseCost)
	case c.DiagonalCost < c.BaseCost:
		return fmt.Errorf("%w: diagonal cost %v below base cost", ErrInvalidConfig, c.DiagonalCost)
	case c.JumpCost < 0 || c.FallCost < 0 || c.PlaceCost < 0:
		return fmt.Errorf("%w: negative cost", ErrInvalidConfig)
	case c.MaxFall < 0:
		return fmt.Errorf("%w: max fall %d", ErrInvalidConfig, c.MaxFall)
	case c.ExpansionsPerStep <= 0:
		return fmt.Errorf("%w: expansions per step %d", ErrInvalidConfig, c.ExpansionsPerStep)
	case c.MaxExpansions < c.ExpansionsPerStep:
		return fmt.Errorf("%w: max expansions %d below per-step budget", ErrInvalidConfig, c.MaxExpansions)
	}
	return nil
}

// GlobalContext is shared by every expansion of one search.
type GlobalContext struct {
	Config *TravelConfig
	World  terrain.Query
}
