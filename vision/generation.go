package vision

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/vertexvision/vertexvision/api"
)

// DefaultImageGenerationModel is the model name used when none is given.
const DefaultImageGenerationModel = "imagegeneration@002"

// supportedUpscalingSizes are the accepted upscale target sizes.
var supportedUpscalingSizes = []int{2048, 4096}

// ImageGenerationModel generates images from text prompts.
//
//	model := vision.NewImageGenerationModel(client, "")
//	resp, err := model.GenerateImages(ctx, vision.GenerateImagesRequest{
//		Prompt: "Astronaut riding a horse",
//	})
//	resp.Images[0].Save(ctx, "image1.png", true)
type ImageGenerationModel struct {
	name   string
	client *api.Client
}

// NewImageGenerationModel returns a generation model bound to client.
// An empty name selects [DefaultImageGenerationModel].
func NewImageGenerationModel(client *api.Client, name string) *ImageGenerationModel {
	if name == "" {
		name = DefaultImageGenerationModel
	}
	return &ImageGenerationModel{name: name, client: client}
}

// GenerateImagesRequest are the inputs to [ImageGenerationModel.GenerateImages].
type GenerateImagesRequest struct {
	// Prompt is the text prompt for the image.
	Prompt string

	// NegativePrompt describes what to omit from the generated images.
	NegativePrompt string

	// NumberOfImages is the number of images to generate, default 1.
	// Range: 1..8.
	NumberOfImages int

	// Width and Height of the image. The service may ignore these; when
	// set they are forwarded as a sample size plus aspect ratio.
	Width  int
	Height int

	// GuidanceScale controls the strength of the prompt. Suggested
	// values: 0-9 low, 10-20 medium, 21+ high.
	GuidanceScale *float64

	// Seed for the random generator. The seed is sent as a number; a
	// stringified seed produces different results on the service side.
	Seed *int64

	// Language of the prompt ("en", "hi", "ja", "ko", or "auto").
	Language string

	// OutputGCSURI stores the generated images in the object store
	// instead of returning bytes.
	OutputGCSURI string
}

// EditImageRequest are the inputs to [ImageGenerationModel.EditImage].
type EditImageRequest struct {
	// Prompt is the text prompt for the edit.
	Prompt string

	// BaseImage is the image to edit.
	BaseImage ImageSource

	// Mask restricts the edit to a region of the base image.
	Mask ImageSource

	NegativePrompt string
	NumberOfImages int
	GuidanceScale  *float64
	Seed           *int64
	Language       string
	OutputGCSURI   string
}

// GenerateImages generates images from a text prompt. One predict call is
// made; remote failures propagate unchanged.
func (m *ImageGenerationModel) GenerateImages(ctx context.Context, req GenerateImagesRequest) (*ImageGenerationResponse, error) {
	return m.generate(ctx, req, nil, nil)
}

// EditImage edits an existing image based on a text prompt.
func (m *ImageGenerationModel) EditImage(ctx context.Context, req EditImageRequest) (*ImageGenerationResponse, error) {
	return m.generate(ctx, GenerateImagesRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		NumberOfImages: req.NumberOfImages,
		GuidanceScale:  req.GuidanceScale,
		Seed:           req.Seed,
		Language:       req.Language,
		OutputGCSURI:   req.OutputGCSURI,
	}, req.BaseImage, req.Mask)
}

func (m *ImageGenerationModel) generate(ctx context.Context, req GenerateImagesRequest, baseImage, mask ImageSource) (*ImageGenerationResponse, error) {
	if req.NumberOfImages == 0 {
		req.NumberOfImages = 1
	}

	// Note: only a single prompt is supported by the service.
	prompt := req.Prompt
	instance := api.Instance{Prompt: &prompt}

	shared := Params{
		"prompt":                    String(req.Prompt),
		"number_of_images_in_batch": Int(int64(req.NumberOfImages)),
	}

	if baseImage != nil {
		ref, err := baseImage.reference(ctx)
		if err != nil {
			return nil, err
		}
		instance.Image = ref
		if uri := baseImage.GCSURI(); uri != "" {
			shared["base_image_uri"] = String(uri)
		} else {
			data, err := baseImage.Bytes(ctx)
			if err != nil {
				return nil, err
			}
			shared["base_image_hash"] = String(contentHash(data))
		}
	}

	if mask != nil {
		ref, err := mask.reference(ctx)
		if err != nil {
			return nil, err
		}
		instance.Mask = &api.MaskReference{Image: ref}
		if uri := mask.GCSURI(); uri != "" {
			shared["mask_uri"] = String(uri)
		} else {
			data, err := mask.Bytes(ctx)
			if err != nil {
				return nil, err
			}
			shared["mask_hash"] = String(contentHash(data))
		}
	}

	parameters := api.Parameters{SampleCount: req.NumberOfImages}

	// The service historically accepted image sizes and may ignore them
	// now; the fields are kept and forwarded as-is.
	if maxSize := max(req.Width, req.Height); maxSize > 0 {
		// The size needs to be a string.
		parameters.SampleImageSize = strconv.Itoa(maxSize)
		if req.Width > 0 && req.Height > 0 && req.Width != req.Height {
			parameters.AspectRatio = fmt.Sprintf("%d:%d", req.Width, req.Height)
		}
	}

	if req.NegativePrompt != "" {
		parameters.NegativePrompt = req.NegativePrompt
		shared["negative_prompt"] = String(req.NegativePrompt)
	}

	if req.Seed != nil {
		// A string seed and a numerical seed give different results.
		parameters.Seed = req.Seed
		shared["seed"] = Int(*req.Seed)
	}

	if req.GuidanceScale != nil {
		parameters.GuidanceScale = req.GuidanceScale
		shared["guidance_scale"] = Float(*req.GuidanceScale)
	}

	if req.Language != "" {
		parameters.Language = req.Language
		shared["language"] = String(req.Language)
	}

	if req.OutputGCSURI != "" {
		parameters.StorageURI = req.OutputGCSURI
		shared["storage_uri"] = String(req.OutputGCSURI)
	}

	resp, err := m.client.Predict(ctx, m.name, &api.PredictRequest{
		Instances:  []api.Instance{instance},
		Parameters: &parameters,
	})
	if err != nil {
		return nil, err
	}

	images := make([]*GeneratedImage, 0, len(resp.Predictions))
	for idx, prediction := range resp.Predictions {
		params := shared.Clone()
		params["index_of_image_in_batch"] = Int(int64(idx))

		img, err := decodeGeneratedImage(prediction, params)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	return &ImageGenerationResponse{Images: images, raw: resp}, nil
}

// UpscaleImageRequest are the inputs to [ImageGenerationModel.UpscaleImage].
type UpscaleImageRequest struct {
	// Image to upscale: a previously generated image, or any image that
	// is exactly 1024 pixels on at least one axis.
	Image ImageSource

	// NewSize is the target size of the biggest dimension. Only 2048 and
	// 4096 are supported; default 2048.
	NewSize int

	// OutputGCSURI stores the upscaled image in the object store instead
	// of returning bytes.
	OutputGCSURI string
}

// UpscaleImage upscales an image. Upscaling a [GeneratedImage] augments its
// generation parameters in place, preserving the provenance chain.
func (m *ImageGenerationModel) UpscaleImage(ctx context.Context, req UpscaleImageRequest) (*GeneratedImage, error) {
	width, height, err := req.Image.Size(ctx)
	if err != nil {
		return nil, err
	}
	if width != 1024 && height != 1024 {
		return nil, fmt.Errorf("vision: upscaling a %dx%d image: %w: a 1024 pixel axis is required", width, height, ErrUnsupportedSize)
	}

	if req.NewSize == 0 {
		req.NewSize = 2048
	}
	supported := false
	for _, size := range supportedUpscalingSizes {
		if req.NewSize == size {
			supported = true
		}
	}
	if !supported {
		return nil, fmt.Errorf("vision: upscaling to %d: %w: supported sizes are %v", req.NewSize, ErrUnsupportedSize, supportedUpscalingSizes)
	}

	ref, err := req.Image.reference(ctx)
	if err != nil {
		return nil, err
	}

	prompt := ""
	parameters := api.Parameters{
		SampleImageSize: strconv.Itoa(req.NewSize),
		SampleCount:     1,
		Mode:            "upscale",
		StorageURI:      req.OutputGCSURI,
	}

	resp, err := m.client.Predict(ctx, m.name, &api.PredictRequest{
		Instances:  []api.Instance{{Prompt: &prompt, Image: ref}},
		Parameters: &parameters,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("vision: upscale returned no predictions")
	}

	// Reuse the source bag so upscaling a generated image retains its
	// full provenance; plain images start from scratch.
	params := req.Image.generationParams()
	if params == nil {
		params = Params{}
	}
	params["upscaled_image_size"] = Int(int64(req.NewSize))

	return decodeGeneratedImage(resp.Predictions[0], params)
}

func contentHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// generatedPrediction is the wire shape of one generation output.
type generatedPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	GcsURI             string `json:"gcsUri"`
	MimeType           string `json:"mimeType"`
}

func decodeGeneratedImage(prediction json.RawMessage, params Params) (*GeneratedImage, error) {
	var p generatedPrediction
	if err := json.Unmarshal(prediction, &p); err != nil {
		return nil, fmt.Errorf("vision: decoding prediction: %w", err)
	}

	var data []byte
	if p.BytesBase64Encoded != "" {
		var err error
		data, err = base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("vision: decoding prediction bytes: %w", err)
		}
	}

	img, err := NewImage(data, p.GcsURI)
	if err != nil {
		return nil, err
	}
	return &GeneratedImage{Image: img, params: params}, nil
}

// GeneratedImage is an image produced by a generation call, carrying the
// parameters that produced it.
type GeneratedImage struct {
	*Image
	params Params
}

// GenerationParameters returns the parameter bag recorded when the image
// was generated.
func (g *GeneratedImage) GenerationParameters() Params {
	return g.params
}

func (g *GeneratedImage) generationParams() Params { return g.params }

// Save writes the image to a local path. With includeGenerationParameters
// set, the parameter bag is embedded into the image's EXIF metadata so
// [LoadGeneratedImage] can reconstruct it later.
func (g *GeneratedImage) Save(ctx context.Context, path string, includeGenerationParameters bool) error {
	if !includeGenerationParameters {
		return g.Image.Save(ctx, path)
	}

	if len(g.params) == 0 {
		return fmt.Errorf("vision: saving %s: %w", path, ErrMissingMetadata)
	}

	data, err := g.Bytes(ctx)
	if err != nil {
		return err
	}
	tagged, err := embedGenerationParameters(data, g.params)
	if err != nil {
		return err
	}
	return os.WriteFile(path, tagged, 0o644)
}

// LoadGeneratedImage loads an image saved with its generation parameters
// and reconstructs the exact parameter bag from the metadata slot.
func LoadGeneratedImage(ctx context.Context, location string) (*GeneratedImage, error) {
	img, err := LoadImage(ctx, location)
	if err != nil {
		return nil, err
	}
	data, err := img.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	params, err := extractGenerationParameters(data)
	if err != nil {
		return nil, err
	}
	return &GeneratedImage{Image: img, params: params}, nil
}

// ImageGenerationResponse is the ordered list of images produced by one
// generation call.
type ImageGenerationResponse struct {
	Images []*GeneratedImage

	raw *api.PredictResponse
}

// Len returns the number of generated images.
func (r *ImageGenerationResponse) Len() int { return len(r.Images) }

// At returns the generated image at index i.
func (r *ImageGenerationResponse) At(i int) *GeneratedImage { return r.Images[i] }
