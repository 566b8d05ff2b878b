package world

import (
	"fmt"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/persistence/snapshot"
)

type resumePoint struct {
	pos model.Location
	yaw float64
}

// ExportSnapshot captures the clock and where each live agent stands. It must
// run on the world loop goroutine or while the loop is stopped.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		Seed:       w.cfg.Seed,
		TickRate:   w.cfg.TickRateHz,
		Height:     w.cfg.Height,
		ViewRadius: w.cfg.ViewRadius,
	}
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a.Body.Dead {
			continue
		}
		p := a.Body.Pos
		s.Agents = append(s.Agents, snapshot.AgentV1{Name: a.Name, Pos: [3]float64{p.X, p.Y, p.Z}, Yaw: a.Body.Yaw})
	}
	// Agents that never rejoined since the last import keep their place.
	for name, rp := range w.resume {
		s.Agents = append(s.Agents, snapshot.AgentV1{Name: name, Pos: [3]float64{rp.pos.X, rp.pos.Y, rp.pos.Z}, Yaw: rp.yaw})
	}
	return s
}

// ImportSnapshot restores the clock and remembers agent positions so agents
// rejoining under the same name continue where they stood. Call before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Seed != w.cfg.Seed || s.Height != w.cfg.Height {
		return fmt.Errorf("world: snapshot seed=%d height=%d does not match seed=%d height=%d", s.Seed, s.Height, w.cfg.Seed, w.cfg.Height)
	}
	w.tick.Store(s.Header.Tick)
	w.resume = make(map[string]resumePoint, len(s.Agents))
	for _, a := range s.Agents {
		w.resume[a.Name] = resumePoint{pos: model.Location{X: a.Pos[0], Y: a.Pos[1], Z: a.Pos[2]}, yaw: a.Yaw}
	}
	return nil
}
