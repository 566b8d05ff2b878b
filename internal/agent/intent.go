package agent

import "voxelnav.ai/internal/nav/model"

// Intent is a follow.Actuator that records commands into Controls instead of
// moving anything. The bot sends the recorded controls as its next ACT. Call
// Reset before each tick so a tick without commands stands still.
type Intent struct {
	loc      model.Location
	controls model.Controls
}

func (i *Intent) SetLocation(loc model.Location) { i.loc = loc }
func (i *Intent) Location() model.Location      { return i.loc }

func (i *Intent) Face(d model.Direction) {
	i.controls.Yaw = d.Yaw
	i.controls.Pitch = d.Pitch
}

func (i *Intent) Jump()                  { i.controls.Jump = true }
func (i *Intent) MoveForward()           { i.controls.Forward = true }
func (i *Intent) SetSpeed(s model.Speed) { i.controls.Speed = s }

// Reset clears movement but keeps the look direction.
func (i *Intent) Reset() {
	i.controls.Forward = false
	i.controls.Jump = false
	i.controls.Speed = model.SpeedStop
}

func (i *Intent) Controls() model.Controls { return i.controls }
