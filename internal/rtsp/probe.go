package rtsp

import (
	"fmt"

	"github.com/bluenviron/gortsplib/v4/pkg/base"
)

// Probe describes the stream at rtspURL and returns its video codec.
// It lets startup fail with a clear message before OpenCV opens the same
// URL and reports only an empty frame.
func Probe(rtspURL string) (string, error) {
	u, err := base.ParseURL(rtspURL)
	if err != nil {
		return "", fmt.Errorf("invalid RTSP URL: %w", err)
	}

	client := newClient()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return "", fmt.Errorf("failed to describe stream: %w", err)
	}

	_, forma := findVideo(desc)
	if forma == nil {
		return "", fmt.Errorf("no video track in %s", rtspURL)
	}
	return forma.Codec(), nil
}
