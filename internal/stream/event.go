package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event types.
const (
	TypeStatus    = "status"
	TypeLogStream = "log-stream"
	TypeLog       = "log"
	TypeComplete  = "complete"
	TypeError     = "error"
)

// Stages reported by status events, in server order. Stages may be skipped.
const (
	StageConnected     = "connected"
	StageExtracting    = "extracting"
	StageUploading     = "uploading"
	StageBuilding      = "building"
	StageStarting      = "starting"
	StageCapturingLogs = "capturing-logs"
	StageComplete      = "complete"
)

// Event is one deployment progress message.
type Event struct {
	Type    string    `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    EventData `json:"data"`

	ServiceID string `json:"serviceId,omitempty"`
	MachineID string `json:"machineId,omitempty"`
	URL       string `json:"url,omitempty"`
}

type EventData struct {
	BuildLog   string `json:"buildLog,omitempty"`
	StartupLog string `json:"startupLog,omitempty"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Decode parses one event body.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return e, nil
}
