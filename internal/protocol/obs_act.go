package protocol

// OBS (server -> client), one per tick.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self SelfObs `json:"self"`

	// Chunks carries columns the client has not been sent yet.
	Chunks []ChunkObs `json:"chunks,omitempty"`
	Chat   []ChatObs  `json:"chat,omitempty"`
}

type SelfObs struct {
	Pos      [3]float64 `json:"pos"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
	OnGround bool       `json:"on_ground"`
	Dead     bool       `json:"dead"`
}

type ChunkObs struct {
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	Encoding string `json:"encoding"` // "RLE"
	Data     string `json:"data"`
}

type ChatObs struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	AgentID         string    `json:"agent_id"`
	Controls        *Controls `json:"controls,omitempty"`
	Say             string    `json:"say,omitempty"`
	Respawn         bool      `json:"respawn,omitempty"`
}

// Controls is the full input state for the next tick; omitted fields reset.
type Controls struct {
	Yaw     float64 `json:"yaw"`
	Pitch   float64 `json:"pitch"`
	Forward bool    `json:"forward,omitempty"`
	Jump    bool    `json:"jump,omitempty"`
	Speed   string  `json:"speed,omitempty"` // "STOP", "WALK", "SPRINT"
}
