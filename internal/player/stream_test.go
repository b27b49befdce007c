package player

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstSampleEncoder emits the first sample of each frame as a two byte packet.
type firstSampleEncoder struct {
	frames int
	err    error
}

func (e *firstSampleEncoder) Encode(pcm []int16, data []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	e.frames++
	binary.LittleEndian.PutUint16(data, uint16(pcm[0]))
	return 2, nil
}

func pcmFrames(values ...int16) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		for range frameLen {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	return buf.Bytes()
}

func TestStreamPCM(t *testing.T) {
	raw := append(pcmFrames(7, -3), 1, 2, 3) // trailing partial frame
	send := make(chan []byte, 4)
	enc := &firstSampleEncoder{}

	require.NoError(t, StreamPCM(context.Background(), bytes.NewReader(raw), send, enc))
	close(send)

	var got []int16
	for packet := range send {
		require.Len(t, packet, 2)
		got = append(got, int16(binary.LittleEndian.Uint16(packet)))
	}
	assert.Equal(t, []int16{7, -3}, got)
	assert.Equal(t, 2, enc.frames)
}

func TestStreamPCMCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nobody reads send, so only cancellation can end the stream.
	send := make(chan []byte)
	err := StreamPCM(ctx, bytes.NewReader(pcmFrames(1)), send, &firstSampleEncoder{})
	assert.NoError(t, err)
}

func TestStreamPCMErrors(t *testing.T) {
	t.Run("encoder", func(t *testing.T) {
		boom := errors.New("bad frame")
		err := StreamPCM(context.Background(), bytes.NewReader(pcmFrames(1)), make(chan []byte, 1), &firstSampleEncoder{err: boom})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("reader", func(t *testing.T) {
		boom := errors.New("pipe broke")
		r := io.MultiReader(bytes.NewReader([]byte{1, 2}), iotestErrReader{boom})
		err := StreamPCM(context.Background(), r, make(chan []byte, 1), &firstSampleEncoder{})
		assert.ErrorIs(t, err, boom)
	})
}

type iotestErrReader struct{ err error }

func (r iotestErrReader) Read([]byte) (int, error) { return 0, r.err }

func TestFFmpegArgs(t *testing.T) {
	args := FFmpegArgs("https://cdn.example/a")
	assert.Equal(t, []string{"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5"}, args[:6])
	assert.Contains(t, args, "https://cdn.example/a")
	assert.Subset(t, args, []string{"-vn", "s16le", "48000", "pipe:1"})
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestStreamFromSourceError(t *testing.T) {
	boom := errors.New("no ffmpeg")
	src := func(context.Context, string) (io.ReadCloser, error) { return nil, boom }
	err := streamFrom(context.Background(), src, "u", make(chan []byte), &firstSampleEncoder{})
	assert.ErrorIs(t, err, boom)
}
