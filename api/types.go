package api

import (
	"encoding/json"
	"fmt"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the service logs for details"
	}
}

// ImageReference is one image inside an instance: either an object-store
// URI or the raw bytes, base64-encoded. Exactly one field is ever set.
type ImageReference struct {
	GcsURI             string `json:"gcsUri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
}

// VideoReference is one video inside an instance. The optional segment
// config nests under the video entry, never at the top level.
type VideoReference struct {
	GcsURI             string        `json:"gcsUri,omitempty"`
	BytesBase64Encoded string        `json:"bytesBase64Encoded,omitempty"`
	VideoSegmentConfig *VideoSegment `json:"videoSegmentConfig,omitempty"`
}

// VideoSegment is the wire form of a video segment window, in seconds.
type VideoSegment struct {
	StartOffsetSec int `json:"startOffsetSec"`
	EndOffsetSec   int `json:"endOffsetSec"`
	IntervalSec    int `json:"intervalSec"`
}

// MaskReference wraps the mask image for edit requests.
type MaskReference struct {
	Image *ImageReference `json:"image,omitempty"`
}

// Instance is one input unit of a predict call. Which fields are populated
// depends on the task: generation sets Prompt (and optionally Image/Mask),
// captioning sets only Image, QnA sets Prompt and Image, embedding sets any
// of Image/Video/Text.
type Instance struct {
	// Prompt is a pointer so an explicitly empty prompt (upscaling) is
	// still serialized.
	Prompt *string         `json:"prompt,omitempty"`
	Image  *ImageReference `json:"image,omitempty"`
	Mask   *MaskReference  `json:"mask,omitempty"`
	Video  *VideoReference `json:"video,omitempty"`
	Text   string          `json:"text,omitempty"`
}

// Parameters are the call-wide options of a predict call. Optional fields
// use pointers so that an explicit zero (seed in particular) is sent while
// an absent value produces no key at all.
type Parameters struct {
	SampleCount     int      `json:"sampleCount,omitempty"`
	SampleImageSize string   `json:"sampleImageSize,omitempty"`
	AspectRatio     string   `json:"aspectRatio,omitempty"`
	NegativePrompt  string   `json:"negativePrompt,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
	GuidanceScale   *float64 `json:"guidanceScale,omitempty"`
	Language        string   `json:"language,omitempty"`
	StorageURI      string   `json:"storageUri,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	Dimension       int      `json:"dimension,omitempty"`
}

// PredictRequest is the request passed to [Client.Predict]. The interface
// is batch-shaped; this SDK always sends exactly one instance.
type PredictRequest struct {
	Instances  []Instance  `json:"instances"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

// PredictResponse is the response from [Client.Predict]. Predictions stay
// raw: their shape is task-specific and decoded by the caller.
type PredictResponse struct {
	Predictions      []json.RawMessage `json:"predictions"`
	DeployedModelID  string            `json:"deployedModelId,omitempty"`
	Model            string            `json:"model,omitempty"`
	ModelVersionID   string            `json:"modelVersionId,omitempty"`
	ModelDisplayName string            `json:"modelDisplayName,omitempty"`
}
