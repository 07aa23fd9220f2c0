package models

import "time"

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box"` // [x1, y1, x2, y2]
}

// Frame is one decoded image pulled from a feed. The bytes are an
// encoded JPEG; a frame belongs to exactly one controller cycle.
type Frame struct {
	Bytes []byte
	Time  time.Time
}

// Event is the record of one escalation cycle. Immutable once built.
type Event struct {
	ID            string      `json:"id"`
	Feed          string      `json:"feed"`
	Time          time.Time   `json:"time"`
	MotionArea    int         `json:"motion_area"`
	Detections    []Detection `json:"detections,omitempty"`
	CapturePath   string      `json:"capture_path,omitempty"`
	DetectionPath string      `json:"detection_path,omitempty"`
	Notified      bool        `json:"notified"`
}

// FeedCommand приходит из топика команд и управляет одним фидом
type FeedCommand struct {
	Feed   string `json:"feed"`
	Action string `json:"action"`
}

const (
	ActionStop    = "stop"
	ActionStopAll = "stop_all"
)

// Feed lifecycle statuses recorded in the feeds table.
const (
	StatusConnecting   = "connecting"
	StatusStreaming    = "streaming"
	StatusReconnecting = "reconnecting"
	StatusStopped      = "stopped"
	StatusFailed       = "failed"
)
