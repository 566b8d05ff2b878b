package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/progress"
)

// ProgressionsBudget is the block budget used when listing moves for the
// progressions command.
const ProgressionsBudget = 30

// HandleCommand runs one text command:
//
//	goto <x> <y> <z>   travel to a block
//	loc                report the current position
//	progressions       list the moves available from here
//	stop               cancel navigation
func (n *Navigator) HandleCommand(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "goto":
		goal, err := parseBlock(fields[1:])
		if err != nil {
			return err
		}
		if err := n.TravelTo(goal); err != nil {
			return err
		}
		n.say("heading to %v", goal)
	case "loc":
		if !n.havePos {
			return ErrNoPosition
		}
		n.say("at %v (block %v)", n.pos, n.pos.Block())
	case "progressions":
		return n.reportProgressions()
	case "stop":
		n.Stop()
		n.say("stopped")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	return nil
}

func parseBlock(args []string) (model.BlockLocation, error) {
	if len(args) != 3 {
		return model.BlockLocation{}, fmt.Errorf("goto: want 3 coordinates, got %d", len(args))
	}
	var v [3]int
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return model.BlockLocation{}, fmt.Errorf("goto: bad coordinate %q", a)
		}
		v[i] = int(math.Floor(f))
	}
	return model.BlockLocation{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (n *Navigator) reportProgressions() error {
	if !n.havePos {
		return ErrNoPosition
	}
	ctx, err := progress.NewMoveContext(n.pos.Block(), ProgressionsBudget)
	if err != nil {
		return err
	}
	travel := n.cfg.Travel
	prog := progress.NewNoVehicleProgressor(progress.GlobalContext{Config: &travel, World: n.world})
	moves := prog.Progressions(ctx).Movements
	n.say("%d progressions from %v", len(moves), ctx.Location)
	for _, m := range moves {
		n.say("%s -> %v cost %s budget %d", m.Record.Kind, m.Record.Context.Location,
			humanize.FtoaWithDigits(m.Cost, 2), m.Record.Context.BlocksCanPlace)
	}
	return nil
}
