package types

// FrameType tags a JSON frame on the per-session WebSocket.
type FrameType string

const (
	// Client to server.
	FrameInput      FrameType = "input"
	FrameResize     FrameType = "resize"
	FrameImagePaste FrameType = "image_paste"
	FrameMemoryDrop FrameType = "memory_drop"

	// Server to client.
	FrameOutput      FrameType = "output"
	FrameReplay      FrameType = "replay"
	FrameExit        FrameType = "exit"
	FrameError       FrameType = "error"
	FrameImageSaved  FrameType = "image_saved"
	FrameMemorySaved FrameType = "memory_saved"
)

// Frame is the single wire envelope for both directions. Unused fields are
// omitted, so each frame type carries only its own payload.
type Frame struct {
	Type FrameType `json:"type"`

	// input, output, replay: raw terminal bytes.
	// image_paste: base64-encoded image bytes.
	Data string `json:"data,omitempty"`

	// resize.
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`

	// image_paste.
	MimeType string `json:"mimeType,omitempty"`

	// memory_drop.
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`

	// error.
	Message string `json:"message,omitempty"`

	// image_saved, memory_saved.
	Path string `json:"path,omitempty"`

	// exit, error. Carried end-to-end but the client does not branch on it;
	// "session not found" detection uses Message.
	Reason string `json:"reason,omitempty"`
}
