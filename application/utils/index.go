package utils

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// DecodeBase64Video writes a base64-encoded clip to a temporary file and
// returns its path. Accepts both raw base64 and data-URL payloads. The
// caller removes the file once the capture finishes.
func DecodeBase64Video(data string) (string, error) {
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx == -1 {
			return "", fmt.Errorf("malformed data url")
		}
		data = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("invalid base64 video payload: %w", err)
	}
	tmp, err := os.CreateTemp("", "facegate-capture-*.mp4")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
