package media

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// levelSmoothing is the exponential smoothing factor for the running payload
// energy estimate. Higher values follow the input more quickly.
const levelSmoothing = 0.3

// ErrCaptureClosed is returned when frames are written after Close.
var ErrCaptureClosed = errors.New("capture closed")

// LocalTrack wraps the shared local audio track.
type LocalTrack struct {
	track *webrtc.TrackLocalStaticRTP
}

// ID returns the track identifier.
func (t *LocalTrack) ID() string {
	return t.track.ID()
}

// Capture owns the local audio track. The embedding application feeds it
// encoded RTP frames; microphone access and encoding stay outside this
// module. Capture keeps a smoothed payload energy estimate so the speaking
// detector can sample a level without touching the media path.
type Capture struct {
	mu     sync.Mutex
	track  *webrtc.TrackLocalStaticRTP
	muted  atomic.Bool
	level  atomic.Uint64 // float64 bits
	closed bool
}

// NewCapture acquires the local audio source. Opus, 48kHz stereo.
func NewCapture(trackID, streamID string) (*Capture, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, trackID, streamID)
	if err != nil {
		return nil, err
	}
	return &Capture{track: track}, nil
}

// Track returns the shared local track handle.
func (c *Capture) Track() Track {
	return &LocalTrack{track: c.track}
}

// WriteRTP feeds one frame into the track and updates the level estimate.
// Frames written while muted are dropped at the source.
func (c *Capture) WriteRTP(p *rtp.Packet) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCaptureClosed
	}
	c.mu.Unlock()

	if c.muted.Load() {
		c.storeLevel(0)
		return nil
	}

	c.storeLevel(payloadEnergy(p.Payload))
	if err := c.track.WriteRTP(p); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

// Level returns the current smoothed energy estimate in [0, 1].
func (c *Capture) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

// SetMuted mutes or unmutes the source. While muted the level reads zero.
func (c *Capture) SetMuted(muted bool) {
	c.muted.Store(muted)
	if muted {
		c.level.Store(math.Float64bits(0))
	}
}

// Close releases the capture. Idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.level.Store(math.Float64bits(0))
	return nil
}

func (c *Capture) storeLevel(sample float64) {
	prev := math.Float64frombits(c.level.Load())
	next := prev + levelSmoothing*(sample-prev)
	c.level.Store(math.Float64bits(next))
}

// payloadEnergy derives a rough energy measure from the encoded payload:
// mean absolute deviation of the payload bytes, normalized to [0, 1]. It is
// a proxy, not decoded amplitude, but it tracks voice activity well enough
// to threshold.
func payloadEnergy(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var sum float64
	for _, b := range payload {
		sum += math.Abs(float64(b) - 128)
	}
	return sum / float64(len(payload)) / 128
}
