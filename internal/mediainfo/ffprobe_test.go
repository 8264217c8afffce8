package mediainfo

import "testing"

func TestResolutionLabel(t *testing.T) {
	tests := []struct {
		height int
		want   string
	}{
		{2160, "2160p"},
		{1080, "1080p"},
		{1088, "1080p"},
		{720, "720p"},
		{480, "480p"},
		{360, "360p"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := resolutionLabel(tt.height); got != tt.want {
			t.Errorf("resolutionLabel(%d) = %q, want %q", tt.height, got, tt.want)
		}
	}
}

func TestCodecLabels(t *testing.T) {
	if got := videoCodecLabel("hevc"); got != "HEVC" {
		t.Errorf("expected HEVC, got %q", got)
	}
	if got := videoCodecLabel("h264"); got != "AVC" {
		t.Errorf("expected AVC, got %q", got)
	}
	if got := audioCodecLabel("truehd"); got != "TrueHD" {
		t.Errorf("expected TrueHD, got %q", got)
	}
	if got := audioCodecLabel(""); got != "" {
		t.Errorf("expected empty label, got %q", got)
	}
}

func TestChannelsLabel(t *testing.T) {
	tests := []struct {
		channels int
		want     string
	}{
		{2, "2.0"},
		{6, "5.1"},
		{8, "7.1"},
		{1, "1.0"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := channelsLabel(tt.channels); got != tt.want {
			t.Errorf("channelsLabel(%d) = %q, want %q", tt.channels, got, tt.want)
		}
	}
}
