package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vertexvision/vertexvision/api"
)

// DefaultMultiModalEmbeddingModel is the model name used when none is given.
const DefaultMultiModalEmbeddingModel = "multimodalembedding@001"

// MultiModalEmbeddingModel generates embedding vectors from images, videos
// and text in a shared semantic space.
type MultiModalEmbeddingModel struct {
	name   string
	client *api.Client
}

// NewMultiModalEmbeddingModel returns an embedding model bound to client.
// An empty name selects [DefaultMultiModalEmbeddingModel].
func NewMultiModalEmbeddingModel(client *api.Client, name string) *MultiModalEmbeddingModel {
	if name == "" {
		name = DefaultMultiModalEmbeddingModel
	}
	return &MultiModalEmbeddingModel{name: name, client: client}
}

// VideoSegmentConfig selects the video segments (in seconds) embeddings
// are generated for. All offsets must be non-negative.
type VideoSegmentConfig struct {
	StartOffsetSec int
	EndOffsetSec   int
	IntervalSec    int
}

// DefaultVideoSegmentConfig mirrors the service defaults: the first two
// minutes in 16 second intervals.
func DefaultVideoSegmentConfig() *VideoSegmentConfig {
	return &VideoSegmentConfig{StartOffsetSec: 0, EndOffsetSec: 120, IntervalSec: 16}
}

// VideoEmbedding is the embedding generated for one video segment.
type VideoEmbedding struct {
	StartOffsetSec int
	EndOffsetSec   int
	Embedding      []float64
}

// EmbeddingRequest are the inputs to [MultiModalEmbeddingModel.GetEmbeddings].
// At least one of Image, Video, or ContextualText must be set.
type EmbeddingRequest struct {
	// Image to embed.
	Image ImageSource

	// Video to embed.
	Video *Video

	// ContextualText for the input image or video. Text embeddings share
	// the image/video semantic space and are interchangeable for search.
	ContextualText string

	// Dimension of the returned vectors. Valid values are decided by the
	// service (currently 128, 256, 512 and 1408); the value is passed
	// through verbatim.
	Dimension int

	// VideoSegmentConfig windows the video; only meaningful when Video
	// is set.
	VideoSegmentConfig *VideoSegmentConfig
}

// MultiModalEmbeddingResponse carries the embedding vectors for whatever
// inputs were supplied. Video embeddings are ordered as the service
// returned them, matching the requested segment windows.
type MultiModalEmbeddingResponse struct {
	ImageEmbedding  []float64
	VideoEmbeddings []VideoEmbedding
	TextEmbedding   []float64

	raw *api.PredictResponse
}

type embeddingPrediction struct {
	ImageEmbedding  []float64 `json:"imageEmbedding"`
	TextEmbedding   []float64 `json:"textEmbedding"`
	VideoEmbeddings []struct {
		StartOffsetSec int       `json:"startOffsetSec"`
		EndOffsetSec   int       `json:"endOffsetSec"`
		Embedding      []float64 `json:"embedding"`
	} `json:"videoEmbeddings"`
}

// GetEmbeddings generates embedding vectors for the provided inputs.
func (m *MultiModalEmbeddingModel) GetEmbeddings(ctx context.Context, req EmbeddingRequest) (*MultiModalEmbeddingResponse, error) {
	if req.Image == nil && req.Video == nil && req.ContextualText == "" {
		return nil, fmt.Errorf("vision: get embeddings: %w", ErrMissingInput)
	}

	var instance api.Instance

	if req.Image != nil {
		ref, err := req.Image.reference(ctx)
		if err != nil {
			return nil, err
		}
		instance.Image = ref
	}

	if req.Video != nil {
		ref, err := req.Video.reference(ctx)
		if err != nil {
			return nil, err
		}
		if cfg := req.VideoSegmentConfig; cfg != nil {
			if cfg.StartOffsetSec < 0 || cfg.EndOffsetSec < 0 || cfg.IntervalSec < 0 {
				return nil, fmt.Errorf("vision: video segment offsets must be non-negative")
			}
			ref.VideoSegmentConfig = &api.VideoSegment{
				StartOffsetSec: cfg.StartOffsetSec,
				EndOffsetSec:   cfg.EndOffsetSec,
				IntervalSec:    cfg.IntervalSec,
			}
		}
		instance.Video = ref
	}

	instance.Text = req.ContextualText

	resp, err := m.client.Predict(ctx, m.name, &api.PredictRequest{
		Instances:  []api.Instance{instance},
		Parameters: &api.Parameters{Dimension: req.Dimension},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("vision: embedding returned no predictions")
	}

	var p embeddingPrediction
	if err := json.Unmarshal(resp.Predictions[0], &p); err != nil {
		return nil, fmt.Errorf("vision: decoding prediction: %w", err)
	}

	out := &MultiModalEmbeddingResponse{
		ImageEmbedding: p.ImageEmbedding,
		TextEmbedding:  p.TextEmbedding,
		raw:            resp,
	}
	for _, v := range p.VideoEmbeddings {
		out.VideoEmbeddings = append(out.VideoEmbeddings, VideoEmbedding{
			StartOffsetSec: v.StartOffsetSec,
			EndOffsetSec:   v.EndOffsetSec,
			Embedding:      v.Embedding,
		})
	}
	return out, nil
}
