package media

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPacket(seq uint16, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: seq,
			PayloadType:    111,
		},
		Payload: payload,
	}
}

func TestCaptureLevel(t *testing.T) {
	t.Run("given silence frames when written then level stays near zero", func(t *testing.T) {
		c, err := NewCapture("audio", "test")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			assert.NoError(t, c.WriteRTP(newTestPacket(uint16(i), []byte{128, 128, 128, 128})))
		}
		assert.InDelta(t, 0, c.Level(), 0.01)
	})

	t.Run("given loud frames when written then level rises", func(t *testing.T) {
		c, err := NewCapture("audio", "test")
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			assert.NoError(t, c.WriteRTP(newTestPacket(uint16(i), []byte{0, 255, 0, 255})))
		}
		assert.Greater(t, c.Level(), 0.5)
	})
}

func TestCaptureMute(t *testing.T) {
	t.Run("given muted capture when frames written then level reads zero", func(t *testing.T) {
		c, err := NewCapture("audio", "test")
		require.NoError(t, err)

		c.SetMuted(true)
		for i := 0; i < 5; i++ {
			assert.NoError(t, c.WriteRTP(newTestPacket(uint16(i), []byte{0, 255, 0, 255})))
		}
		assert.Zero(t, c.Level())

		c.SetMuted(false)
		assert.NoError(t, c.WriteRTP(newTestPacket(6, []byte{0, 255, 0, 255})))
		assert.Greater(t, c.Level(), 0.0)
	})
}

func TestCaptureClose(t *testing.T) {
	t.Run("given closed capture when frame written then error", func(t *testing.T) {
		c, err := NewCapture("audio", "test")
		require.NoError(t, err)

		assert.NoError(t, c.Close())
		assert.ErrorIs(t, c.WriteRTP(newTestPacket(0, []byte{1})), ErrCaptureClosed)
		assert.NoError(t, c.Close())
	})
}
