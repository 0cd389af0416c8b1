// Package vision is a client SDK for the managed vision model family:
// image generation, editing and upscaling, captioning, visual question
// answering, and multimodal embeddings. All computation happens on the
// remote prediction service; this package builds requests, decodes
// responses, and manages lazily fetched media references.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/url"
	"os"
	"strings"
	"sync"

	// Decoders for the supported image formats. The service accepts
	// png/jpeg/gif/bmp; bmp needs x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/bmp"

	"github.com/vertexvision/vertexvision/api"
	"github.com/vertexvision/vertexvision/storage"
)

// maxWebImageBytes caps images fetched from generic web URLs.
const maxWebImageBytes = 20 * 1024 * 1024

// publicStoragePrefix is the public HTTPS form of a gs:// URI.
const publicStoragePrefix = "https://storage.googleapis.com/"

var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
}

// webClient performs the eager fetch for generic web URLs in LoadImage.
var webClient = resty.New()

// Image is a reference to an image: either inline bytes or a pointer to an
// object-store location. Remote bytes are fetched at most once, on first
// use, and cached for the lifetime of the reference.
type Image struct {
	mu      sync.Mutex
	data    []byte
	gcsURI  string
	width   int
	height  int
	fetcher storage.Fetcher
}

// NewImage creates an image reference from inline bytes or a gs:// URI.
// Exactly one of the two must be provided.
func NewImage(data []byte, gcsURI string) (*Image, error) {
	if (len(data) == 0) == (gcsURI == "") {
		return nil, fmt.Errorf("vision: new image: %w", ErrInvalidConstruction)
	}
	return &Image{data: data, gcsURI: gcsURI}, nil
}

// ImageFromBytes creates an image reference holding data inline.
func ImageFromBytes(data []byte) (*Image, error) {
	return NewImage(data, "")
}

// ImageFromGCS creates an image reference pointing at an object-store
// location. Nothing is fetched until the bytes are needed.
func ImageFromGCS(uri string) (*Image, error) {
	return NewImage(nil, uri)
}

// LoadImage loads an image from a local path, a web URL, or an
// object-store location.
//
// gs:// URIs (and their public https://storage.googleapis.com/ form) are
// wrapped as remote references without fetching. Other URLs are fetched
// eagerly and must be at most 20 MB with a png/jpeg/gif/bmp content type.
// Anything else is read as a local file path.
func LoadImage(ctx context.Context, location string) (*Image, error) {
	if strings.HasPrefix(location, publicStoragePrefix) {
		location = storage.Scheme + strings.ReplaceAll(strings.TrimPrefix(location, publicStoragePrefix), "%20", " ")
	}

	if strings.HasPrefix(location, storage.Scheme) {
		return ImageFromGCS(location)
	}

	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Host != "" {
		data, err := fetchWebImage(ctx, location)
		if err != nil {
			return nil, err
		}
		return ImageFromBytes(data)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}
	return ImageFromBytes(data)
}

func fetchWebImage(ctx context.Context, location string) ([]byte, error) {
	resp, err := webClient.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("vision: fetching %s: %s", location, resp.Status())
	}

	if resp.RawResponse.ContentLength > maxWebImageBytes || len(resp.Body()) > maxWebImageBytes {
		return nil, fmt.Errorf("vision: %s: %w (max %d bytes)", location, ErrSizeLimitExceeded, maxWebImageBytes)
	}

	contentType, _, _ := strings.Cut(resp.Header().Get("Content-Type"), ";")
	if !supportedImageTypes[strings.TrimSpace(contentType)] {
		return nil, fmt.Errorf("vision: %s: %w %q", location, ErrUnsupportedMediaType, contentType)
	}

	return resp.Body(), nil
}

// SetFetcher overrides the object-store collaborator used to resolve the
// reference. Call before the first Bytes; the default is [storage.Default].
func (i *Image) SetFetcher(f storage.Fetcher) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fetcher = f
}

// GCSURI returns the object-store location backing this reference, or ""
// for inline images.
func (i *Image) GCSURI() string {
	return i.gcsURI
}

// Bytes returns the image bytes, fetching them from the object store on
// first use. The cache is write-once: no matter how many callers race
// here, at most one fetch is performed.
func (i *Image) Bytes(ctx context.Context) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bytesLocked(ctx)
}

func (i *Image) bytesLocked(ctx context.Context) ([]byte, error) {
	if i.data != nil {
		return i.data, nil
	}

	fetcher := i.fetcher
	if fetcher == nil {
		fetcher = storage.Default()
	}
	data, err := fetcher.Fetch(ctx, i.gcsURI)
	if err != nil {
		return nil, err
	}
	i.data = data
	return i.data, nil
}

// Size returns the pixel dimensions of the image, decoding (and, for
// remote references, fetching) on first use.
func (i *Image) Size(ctx context.Context) (width, height int, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.width == 0 && i.height == 0 {
		data, err := i.bytesLocked(ctx)
		if err != nil {
			return 0, 0, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return 0, 0, fmt.Errorf("vision: decoding image: %w", err)
		}
		i.width, i.height = cfg.Width, cfg.Height
	}
	return i.width, i.height, nil
}

// Save writes the image bytes verbatim to a local path.
func (i *Image) Save(ctx context.Context, path string) error {
	data, err := i.Bytes(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// reference produces the wire form of the image: a gcsUri pointer for
// remote references, base64 bytes for inline ones, never both.
func (i *Image) reference(ctx context.Context) (*api.ImageReference, error) {
	if i.gcsURI != "" {
		return &api.ImageReference{GcsURI: i.gcsURI}, nil
	}
	data, err := i.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	return &api.ImageReference{BytesBase64Encoded: base64.StdEncoding.EncodeToString(data)}, nil
}

func (i *Image) generationParams() Params { return nil }

// ImageSource is any image this SDK can place into a request: an [Image]
// or a [GeneratedImage].
type ImageSource interface {
	Bytes(ctx context.Context) ([]byte, error)
	Size(ctx context.Context) (width, height int, err error)
	GCSURI() string

	reference(ctx context.Context) (*api.ImageReference, error)
	generationParams() Params
}

// Video is a reference to a video: inline bytes or an object-store
// location, with the same write-once lazy-fetch behavior as [Image].
type Video struct {
	mu      sync.Mutex
	data    []byte
	gcsURI  string
	fetcher storage.Fetcher
}

// NewVideo creates a video reference from inline bytes or a gs:// URI.
// Exactly one of the two must be provided.
func NewVideo(data []byte, gcsURI string) (*Video, error) {
	if (len(data) == 0) == (gcsURI == "") {
		return nil, fmt.Errorf("vision: new video: %w", ErrInvalidConstruction)
	}
	return &Video{data: data, gcsURI: gcsURI}, nil
}

// VideoFromBytes creates a video reference holding data inline.
func VideoFromBytes(data []byte) (*Video, error) {
	return NewVideo(data, "")
}

// VideoFromGCS creates a video reference pointing at an object-store
// location.
func VideoFromGCS(uri string) (*Video, error) {
	return NewVideo(nil, uri)
}

// LoadVideo loads a video from a local path or an object-store location.
func LoadVideo(location string) (*Video, error) {
	if strings.HasPrefix(location, storage.Scheme) {
		return VideoFromGCS(location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}
	return VideoFromBytes(data)
}

// SetFetcher overrides the object-store collaborator used to resolve the
// reference.
func (v *Video) SetFetcher(f storage.Fetcher) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fetcher = f
}

// GCSURI returns the object-store location backing this reference, or ""
// for inline videos.
func (v *Video) GCSURI() string {
	return v.gcsURI
}

// Bytes returns the video bytes, fetching them from the object store on
// first use. At most one fetch is performed.
func (v *Video) Bytes(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.data != nil {
		return v.data, nil
	}

	fetcher := v.fetcher
	if fetcher == nil {
		fetcher = storage.Default()
	}
	data, err := fetcher.Fetch(ctx, v.gcsURI)
	if err != nil {
		return nil, err
	}
	v.data = data
	return v.data, nil
}

// Save writes the video bytes verbatim to a local path.
func (v *Video) Save(ctx context.Context, path string) error {
	data, err := v.Bytes(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (v *Video) reference(ctx context.Context) (*api.VideoReference, error) {
	if v.gcsURI != "" {
		return &api.VideoReference{GcsURI: v.gcsURI}, nil
	}
	data, err := v.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	return &api.VideoReference{BytesBase64Encoded: base64.StdEncoding.EncodeToString(data)}, nil
}
