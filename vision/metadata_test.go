package vision

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationParametersRoundTrip(t *testing.T) {
	img, err := ImageFromBytes(pngBytes(t, 8, 8))
	require.NoError(t, err)
	generated := &GeneratedImage{
		Image: img,
		params: Params{
			"prompt": String("cat"),
			"seed":   Int(7),
		},
	}

	path := filepath.Join(t.TempDir(), "generated.png")
	ctx := context.Background()
	require.NoError(t, generated.Save(ctx, path, true))

	loaded, err := LoadGeneratedImage(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, generated.GenerationParameters(), loaded.GenerationParameters())
}

func TestGenerationParametersRoundTripAllKinds(t *testing.T) {
	img, err := ImageFromBytes(pngBytes(t, 8, 8))
	require.NoError(t, err)
	generated := &GeneratedImage{
		Image: img,
		params: Params{
			"prompt":         String("cat"),
			"seed":           Int(0),
			"guidance_scale": Float(12.5),
			"upscaled":       Bool(false),
		},
	}

	path := filepath.Join(t.TempDir(), "generated.png")
	ctx := context.Background()
	require.NoError(t, generated.Save(ctx, path, true))

	loaded, err := LoadGeneratedImage(ctx, path)
	require.NoError(t, err)

	bag := loaded.GenerationParameters()
	seed, ok := bag["seed"].IntValue()
	require.True(t, ok, "integer seed must stay an integer")
	assert.EqualValues(t, 0, seed)

	scale, ok := bag["guidance_scale"].FloatValue()
	require.True(t, ok)
	assert.Equal(t, 12.5, scale)

	upscaled, ok := bag["upscaled"].BoolValue()
	require.True(t, ok)
	assert.False(t, upscaled)
}

func TestSaveWithoutParametersFails(t *testing.T) {
	img, err := ImageFromBytes(pngBytes(t, 8, 8))
	require.NoError(t, err)
	generated := &GeneratedImage{Image: img}

	path := filepath.Join(t.TempDir(), "generated.png")
	err = generated.Save(context.Background(), path, true)
	assert.ErrorIs(t, err, ErrMissingMetadata)
}

func TestSaveWithoutMetadataWritesVerbatim(t *testing.T) {
	data := pngBytes(t, 8, 8)
	img, err := ImageFromBytes(data)
	require.NoError(t, err)
	generated := &GeneratedImage{Image: img, params: Params{"prompt": String("cat")}}

	path := filepath.Join(t.TempDir(), "plain.png")
	require.NoError(t, generated.Save(context.Background(), path, false))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEmbedUnsupportedContainer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))

	img, err := ImageFromBytes(buf.Bytes())
	require.NoError(t, err)
	generated := &GeneratedImage{Image: img, params: Params{"prompt": String("cat")}}

	path := filepath.Join(t.TempDir(), "generated.gif")
	err = generated.Save(context.Background(), path, true)
	assert.ErrorIs(t, err, ErrMissingMetadata)
}

func TestLoadGeneratedImageWithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 8, 8), 0o644))

	_, err := LoadGeneratedImage(context.Background(), path)
	assert.ErrorIs(t, err, ErrMissingMetadata)
}
