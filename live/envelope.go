package live

import (
	"encoding/base64"

	"github.com/glosings0n/Vut-Elimu/audio"
	"github.com/glosings0n/Vut-Elimu/capture"
)

// JPEGMIMEType is the MIME type of video snapshots.
const JPEGMIMEType = "image/jpeg"

// Envelope is one outbound wire message. Exactly one field is set.
type Envelope struct {
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// RealtimeInput streams a media blob.
type RealtimeInput struct {
	Media audio.Blob `json:"media"`
}

// ToolResponse answers one or more function calls.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// FunctionResponse is the reply for a single call id.
type FunctionResponse struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// MediaEnvelope wraps base64 media data.
func MediaEnvelope(mimeType, data string) Envelope {
	return Envelope{RealtimeInput: &RealtimeInput{Media: audio.Blob{MIMEType: mimeType, Data: data}}}
}

// ToolResponseEnvelope answers the call with the given id.
func ToolResponseEnvelope(id, name string, response map[string]interface{}) Envelope {
	return Envelope{ToolResponse: &ToolResponse{
		FunctionResponses: []FunctionResponse{{ID: id, Name: name, Response: response}},
	}}
}

// FrameEnvelope encodes a captured frame. Audio frames become 16 kHz PCM,
// video frames a base64 JPEG.
func FrameEnvelope(f capture.Frame) Envelope {
	if f.Kind == capture.KindVideo {
		return MediaEnvelope(JPEGMIMEType, base64.StdEncoding.EncodeToString(f.JPEG))
	}
	return Envelope{RealtimeInput: &RealtimeInput{Media: audio.EncodeBlob(f.Samples)}}
}
