// Package mediainfo reads technical details (resolution, codecs,
// channels) from media files via ffprobe. A missing binary or a failed
// probe degrades to empty values rather than failing a rename.
package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
)

const probeTimeout = 20 * time.Second

// Reader inspects media files for technical metadata.
type Reader interface {
	Inspect(ctx context.Context, path string) (*models.TechInfo, error)
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

// FFProbeReader shells out to ffprobe for stream information.
type FFProbeReader struct {
	binary string
	logger *logrus.Logger
}

// NewFFProbeReader creates a reader using the given ffprobe binary.
func NewFFProbeReader(binary string, logger *logrus.Logger) *FFProbeReader {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbeReader{binary: binary, logger: logger}
}

// Available reports whether the configured ffprobe binary can be
// found on PATH or at its absolute location.
func (r *FFProbeReader) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Inspect probes the file. Errors are returned so callers can log
// them, but callers treat a failed probe as "no tech info".
func (r *FFProbeReader) Inspect(ctx context.Context, path string) (*models.TechInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, r.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var output ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &models.TechInfo{}
	for _, stream := range output.Streams {
		switch stream.CodecType {
		case "video":
			if info.Resolution == "" {
				info.Resolution = resolutionLabel(stream.Height)
			}
			if info.VideoCodec == "" {
				info.VideoCodec = videoCodecLabel(stream.CodecName)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = audioCodecLabel(stream.CodecName)
			}
			if info.Channels == "" {
				info.Channels = channelsLabel(stream.Channels)
			}
		}
	}

	r.logger.WithFields(logrus.Fields{
		"path":       path,
		"resolution": info.Resolution,
		"vcodec":     info.VideoCodec,
	}).Debug("Media probe completed")
	return info, nil
}

func resolutionLabel(height int) string {
	switch {
	case height <= 0:
		return ""
	case height >= 2160:
		return "2160p"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	default:
		return fmt.Sprintf("%dp", height)
	}
}

func videoCodecLabel(name string) string {
	switch strings.ToLower(name) {
	case "h264", "avc":
		return "AVC"
	case "hevc", "h265":
		return "HEVC"
	case "av1":
		return "AV1"
	case "vp9":
		return "VP9"
	case "vp8":
		return "VP8"
	case "mpeg2video", "mpeg4":
		return "MPEG"
	case "":
		return ""
	default:
		return strings.ToUpper(name)
	}
}

func audioCodecLabel(name string) string {
	switch strings.ToLower(name) {
	case "aac":
		return "AAC"
	case "ac3":
		return "AC3"
	case "eac3":
		return "EAC3"
	case "dts":
		return "DTS"
	case "truehd":
		return "TrueHD"
	case "flac":
		return "FLAC"
	case "opus":
		return "OPUS"
	case "mp3":
		return "MP3"
	case "":
		return ""
	default:
		return strings.ToUpper(name)
	}
}

func channelsLabel(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "1.0"
	case 2:
		return "2.0"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%d.0", channels)
	}
}
