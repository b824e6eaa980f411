package protocol

import "encoding/json"

// Message types
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeStatus       = "status"
	TypeTelemetry    = "telemetry"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
	TypeError        = "error"
)

// Error codes
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrUnknownType    = "UNKNOWN_TYPE"
	ErrWebRTC         = "WEBRTC_ERROR"
)

// Message is the base envelope for all WebSocket messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PingPayload for ping messages
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PongPayload for pong messages
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// StatusPayload is sent once when a client connects
type StatusPayload struct {
	ClientID      string `json:"client_id"`
	Mode          string `json:"mode"`     // "pid" or "direct"
	Actuator      string `json:"actuator"` // back end type
	Camera        string `json:"camera"`
	VideoProtocol string `json:"video_protocol"` // "mjpeg" or "webrtc"
	Health        string `json:"health"`
}

// TelemetryPayload is the periodic view of the shared cells and the mount.
// Coordinates are full-frame pixels, angles degrees.
type TelemetryPayload struct {
	Timestamp  int64   `json:"timestamp"`
	ObjectX    float64 `json:"object_x"`
	ObjectY    float64 `json:"object_y"`
	CenterX    int64   `json:"center_x"`
	CenterY    int64   `json:"center_y"`
	PanOutput  float64 `json:"pan_output"`
	TiltOutput float64 `json:"tilt_output"`
	PanAngle   float64 `json:"pan_angle"`
	TiltAngle  float64 `json:"tilt_angle"`
	Health     string  `json:"health"`
}

// SDPPayload for offer/answer messages
type SDPPayload struct {
	SDP string `json:"sdp"`
}

// ICECandidatePayload for ICE candidate messages
type ICECandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid"`
	SDPMLineIndex uint16 `json:"sdp_mline_index"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    msgType,
		Payload: data,
	}, nil
}

// ParsePayload unmarshals the payload into the given struct
func (m *Message) ParsePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}
