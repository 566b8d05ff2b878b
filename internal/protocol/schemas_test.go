package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelnav.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips a Go message so the validator sees the wire form.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile(t, "hello.schema.json")
	welcomeSchema := compile(t, "welcome.schema.json")
	obsSchema := compile(t, "obs.schema.json")
	actSchema := compile(t, "act.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "agent_name":"bot1"
	}`), &hello)
	validate(helloSchema, hello)

	validate(welcomeSchema, asJSON(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "s1",
		AgentID:         "A1",
		WorldParams:     protocol.WorldParams{TickRateHz: 20, ChunkSize: 16, Height: 64, ViewRadius: 3, Seed: 1337},
		Spawn:           [3]float64{0.5, 30, 0.5},
	}))

	validate(obsSchema, asJSON(t, protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		AgentID:         "A1",
		Self:            protocol.SelfObs{Pos: [3]float64{0.5, 30, 0.5}, Yaw: -90, OnGround: true},
		Chunks:          []protocol.ChunkObs{{CX: -1, CZ: 0, Encoding: "RLE", Data: "AQE="}},
		Chat:            []protocol.ChatObs{{From: "alice", Text: "goto 1 2 3"}},
	}))

	validate(actSchema, asJSON(t, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		AgentID:         "A1",
		Controls:        &protocol.Controls{Yaw: 12.5, Pitch: -10, Forward: true, Speed: "SPRINT"},
		Say:             "hi",
	}))
}

func TestSchemas_RejectBadAct(t *testing.T) {
	actSchema := compile(t, "act.schema.json")
	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":0,
	  "agent_id":"A1",
	  "controls":{"yaw":0,"pitch":0,"speed":"RUN"}
	}`), &act)
	if err := actSchema.Validate(act); err == nil {
		t.Fatalf("expected unknown speed rejected")
	}
}
