package config

import (
	"time"

	"github.com/rbright/vmemo/internal/audio"
)

// AudioFormat returns the capture format described by the audio section.
func (c Config) AudioFormat() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		BitDepth:   c.Audio.BitDepth,
	}
}

// MaxDuration returns the recording limit, or zero when unbounded.
func (r RecordingConfig) MaxDuration() time.Duration {
	return time.Duration(r.MaxSeconds) * time.Second
}

// Prealloc returns the duration of audio to reserve up front.
func (r RecordingConfig) Prealloc() time.Duration {
	d := time.Duration(r.PreallocSeconds) * time.Second
	if limit := r.MaxDuration(); limit > 0 && d > limit {
		return limit
	}
	return d
}

// Timeout returns the per-request transcription deadline.
func (t TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// Timeout returns the per-request summary deadline.
func (s SummaryConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}
