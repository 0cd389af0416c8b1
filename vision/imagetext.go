package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vertexvision/vertexvision/api"
)

// DefaultImageTextModel is the model name behind captioning and visual
// question answering.
const DefaultImageTextModel = "imagetext@001"

// ImageCaptioningModel generates captions for an image.
type ImageCaptioningModel struct {
	name   string
	client *api.Client
}

// NewImageCaptioningModel returns a captioning model bound to client. An
// empty name selects [DefaultImageTextModel].
func NewImageCaptioningModel(client *api.Client, name string) *ImageCaptioningModel {
	if name == "" {
		name = DefaultImageTextModel
	}
	return &ImageCaptioningModel{name: name, client: client}
}

// CaptionRequest are the inputs to [ImageCaptioningModel.GetCaptions].
type CaptionRequest struct {
	// Image to caption. Size limit: 10 MB.
	Image ImageSource

	// NumberOfResults is the number of captions to produce, default 1.
	// Range: 1-3.
	NumberOfResults int

	// Language of the captions ("en", "fr", "de", "it", "es"),
	// default "en".
	Language string

	// OutputGCSURI stores the results in the object store.
	OutputGCSURI string
}

// GetCaptions generates captions for the given image.
func (m *ImageCaptioningModel) GetCaptions(ctx context.Context, req CaptionRequest) ([]string, error) {
	ref, err := req.Image.reference(ctx)
	if err != nil {
		return nil, err
	}

	if req.NumberOfResults == 0 {
		req.NumberOfResults = 1
	}
	if req.Language == "" {
		req.Language = "en"
	}

	resp, err := m.client.Predict(ctx, m.name, &api.PredictRequest{
		Instances: []api.Instance{{Image: ref}},
		Parameters: &api.Parameters{
			SampleCount: req.NumberOfResults,
			Language:    req.Language,
			StorageURI:  req.OutputGCSURI,
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeStrings(resp.Predictions)
}

// ImageQnAModel answers questions about an image.
type ImageQnAModel struct {
	name   string
	client *api.Client
}

// NewImageQnAModel returns a question-answering model bound to client. An
// empty name selects [DefaultImageTextModel].
func NewImageQnAModel(client *api.Client, name string) *ImageQnAModel {
	if name == "" {
		name = DefaultImageTextModel
	}
	return &ImageQnAModel{name: name, client: client}
}

// QuestionRequest are the inputs to [ImageQnAModel.AskQuestion].
type QuestionRequest struct {
	// Image the question is about. Size limit: 10 MB.
	Image ImageSource

	// Question to ask about the image.
	Question string

	// NumberOfResults is the number of answers to produce, default 1.
	// Range: 1-3.
	NumberOfResults int
}

// AskQuestion answers a question about the given image.
func (m *ImageQnAModel) AskQuestion(ctx context.Context, req QuestionRequest) ([]string, error) {
	ref, err := req.Image.reference(ctx)
	if err != nil {
		return nil, err
	}

	if req.NumberOfResults == 0 {
		req.NumberOfResults = 1
	}

	resp, err := m.client.Predict(ctx, m.name, &api.PredictRequest{
		Instances: []api.Instance{{Prompt: &req.Question, Image: ref}},
		Parameters: &api.Parameters{
			SampleCount: req.NumberOfResults,
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeStrings(resp.Predictions)
}

// ImageTextModel bundles captioning and question answering, which share
// one underlying service model.
type ImageTextModel struct {
	captioning ImageCaptioningModel
	qna        ImageQnAModel
}

// NewImageTextModel returns a combined captioning and question-answering
// model bound to client. An empty name selects [DefaultImageTextModel].
func NewImageTextModel(client *api.Client, name string) *ImageTextModel {
	if name == "" {
		name = DefaultImageTextModel
	}
	return &ImageTextModel{
		captioning: ImageCaptioningModel{name: name, client: client},
		qna:        ImageQnAModel{name: name, client: client},
	}
}

// GetCaptions generates captions for the given image.
func (m *ImageTextModel) GetCaptions(ctx context.Context, req CaptionRequest) ([]string, error) {
	return m.captioning.GetCaptions(ctx, req)
}

// AskQuestion answers a question about the given image.
func (m *ImageTextModel) AskQuestion(ctx context.Context, req QuestionRequest) ([]string, error) {
	return m.qna.AskQuestion(ctx, req)
}

func decodeStrings(predictions []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(predictions))
	for _, p := range predictions {
		var s string
		if err := json.Unmarshal(p, &s); err != nil {
			return nil, fmt.Errorf("vision: decoding prediction: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
