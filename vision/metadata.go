package vision

import (
	"bytes"
	"encoding/json"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
)

// Generation parameters ride along inside the image file itself, as a JSON
// blob in the EXIF UserComment slot (tag 0x9286) under a fixed namespaced
// key. The key and tag match what the official SDKs write, so images are
// interchangeable between them.
const (
	exifUserCommentTag              = 0x9286
	generationParametersMetadataKey = "google.cloud.vertexai.image_generation.image_generation_parameters"
)

type imageContainer int

const (
	containerUnknown imageContainer = iota
	containerPNG
	containerJPEG
)

var (
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
)

func detectContainer(data []byte) imageContainer {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return containerPNG
	case bytes.HasPrefix(data, magicJPEG):
		return containerJPEG
	default:
		return containerUnknown
	}
}

// embedGenerationParameters returns a copy of data with params written into
// the EXIF UserComment slot. Pixels are not re-encoded; the EXIF payload is
// inserted at the container level (PNG eXIf chunk, JPEG APP1 segment).
func embedGenerationParameters(data []byte, params Params) ([]byte, error) {
	blob, err := json.Marshal(map[string]Params{generationParametersMetadataKey: params})
	if err != nil {
		return nil, err
	}

	rootIb, err := userCommentBuilder(blob)
	if err != nil {
		return nil, err
	}

	out := new(bytes.Buffer)
	switch detectContainer(data) {
	case containerPNG:
		intfc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
		if err != nil {
			return nil, err
		}
		cs := intfc.(*pngstructure.ChunkSlice)
		if err := cs.SetExif(rootIb); err != nil {
			return nil, err
		}
		if err := cs.WriteTo(out); err != nil {
			return nil, err
		}
	case containerJPEG:
		intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
		if err != nil {
			return nil, err
		}
		sl := intfc.(*jpegstructure.SegmentList)
		if err := sl.SetExif(rootIb); err != nil {
			return nil, err
		}
		if err := sl.Write(out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("vision: %w: container cannot carry generation parameters", ErrMissingMetadata)
	}

	return out.Bytes(), nil
}

func userCommentBuilder(blob []byte) (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()

	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, err
	}

	comment := exifundefined.Tag9286UserComment{
		EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
		EncodingBytes: blob,
	}
	if err := exifIb.SetStandardWithName("UserComment", comment); err != nil {
		return nil, err
	}
	return rootIb, nil
}

// extractGenerationParameters reads the parameter bag back out of an image
// produced by embedGenerationParameters (or any official SDK).
func extractGenerationParameters(data []byte) (Params, error) {
	blob, err := userCommentBytes(data)
	if err != nil {
		return nil, err
	}

	var wrapper map[string]Params
	if err := json.Unmarshal(blob, &wrapper); err != nil {
		return nil, fmt.Errorf("vision: decoding generation parameters: %w", err)
	}
	params, ok := wrapper[generationParametersMetadataKey]
	if !ok {
		return nil, fmt.Errorf("vision: %w: metadata key not found", ErrMissingMetadata)
	}
	return params, nil
}

func userCommentBytes(data []byte) ([]byte, error) {
	var rootIfd *exif.Ifd

	switch detectContainer(data) {
	case containerPNG:
		intfc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
		if err != nil {
			return nil, err
		}
		rootIfd, _, err = intfc.Exif()
		if err != nil {
			return nil, fmt.Errorf("vision: %w: no exif metadata", ErrMissingMetadata)
		}
	case containerJPEG:
		intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
		if err != nil {
			return nil, err
		}
		rootIfd, _, err = intfc.Exif()
		if err != nil {
			return nil, fmt.Errorf("vision: %w: no exif metadata", ErrMissingMetadata)
		}
	default:
		return nil, fmt.Errorf("vision: %w: container cannot carry generation parameters", ErrMissingMetadata)
	}

	exifIfd, err := exif.FindIfdFromRootIfd(rootIfd, "IFD/Exif")
	if err != nil {
		return nil, fmt.Errorf("vision: %w: no exif ifd", ErrMissingMetadata)
	}

	entries, err := exifIfd.FindTagWithId(exifUserCommentTag)
	if err != nil || len(entries) == 0 {
		return nil, fmt.Errorf("vision: %w: no user comment", ErrMissingMetadata)
	}

	value, err := entries[0].Value()
	if err != nil {
		return nil, err
	}

	switch t := value.(type) {
	case exifundefined.Tag9286UserComment:
		return t.EncodingBytes, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("vision: %w: unexpected user comment type %T", ErrMissingMetadata, value)
	}
}
