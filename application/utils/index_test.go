package utils

import (
	"encoding/base64"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64Video(t *testing.T) {
	payload := []byte("not really a video, but bytes travel the same way")
	encoded := base64.StdEncoding.EncodeToString(payload)

	path, err := DecodeBase64Video(encoded)
	require.NoError(t, err)
	defer os.Remove(path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestDecodeBase64VideoDataURL(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02}
	encoded := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(payload)

	path, err := DecodeBase64Video(encoded)
	require.NoError(t, err)
	defer os.Remove(path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestDecodeBase64VideoRejectsGarbage(t *testing.T) {
	_, err := DecodeBase64Video("%%%not-base64%%%")
	assert.Error(t, err)

	_, err = DecodeBase64Video("data:video/mp4;base64")
	assert.Error(t, err)
}
