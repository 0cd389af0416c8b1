package vision

import "errors"

// Validation failures are reported through these sentinels, wrapped with
// call-specific detail. Remote predict and object-store errors are never
// wrapped; they surface to the caller exactly as the transport produced
// them.
var (
	// ErrInvalidConstruction reports a media reference constructed with
	// both inline bytes and a gs:// URI, or with neither.
	ErrInvalidConstruction = errors.New("exactly one of inline bytes or a gs:// uri must be provided")

	// ErrSizeLimitExceeded reports a fetched web resource larger than the
	// fixed cap.
	ErrSizeLimitExceeded = errors.New("resource exceeds size limit")

	// ErrUnsupportedMediaType reports a fetched web resource whose
	// content type is outside the allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrMissingInput reports an embedding call with no image, no video
	// and no contextual text.
	ErrMissingInput = errors.New("one of image, video, or contextual text is required")

	// ErrUnsupportedSize reports an upscale with wrong source dimensions
	// or an unsupported target size.
	ErrUnsupportedSize = errors.New("unsupported image size")

	// ErrMissingMetadata reports a save with generation parameters
	// requested when the image has none, or when its container format
	// cannot carry them.
	ErrMissingMetadata = errors.New("image has no generation parameters")
)
