package player

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"gopkg.in/hraban/opus.v2"
)

// PCM layout sent to Discord: 48 kHz stereo, 20 ms frames.
const (
	sampleRate   = 48000
	channels     = 2
	frameSamples = 960
	frameLen     = frameSamples * channels
	// maxOpusPacket bounds one encoded frame.
	maxOpusPacket = 4000
)

// Encoder turns interleaved PCM frames into opus packets.
type Encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// NewOpusEncoder returns a 48 kHz stereo libopus encoder tuned for music.
func NewOpusEncoder() (Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// PCMSource opens raw s16le PCM for a stream URL.
type PCMSource func(ctx context.Context, streamURL string) (io.ReadCloser, error)

// FFmpegArgs returns the ffmpeg arguments that decode streamURL to PCM on
// stdout, reconnecting on dropped HTTP streams.
func FFmpegArgs(streamURL string) []string {
	return []string{
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn", "-f", "s16le", "-ar", "48000", "-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	}
}

// FFmpeg returns a PCMSource that runs bin. Cancelling ctx kills ffmpeg.
func FFmpeg(bin string) PCMSource {
	if bin == "" {
		bin = "ffmpeg"
	}
	return func(ctx context.Context, streamURL string) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, bin, FFmpegArgs(streamURL)...)
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start ffmpeg: %w", err)
		}
		return &cmdReader{ReadCloser: out, cmd: cmd}, nil
	}
}

// cmdReader reaps the process when its output is closed.
type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *cmdReader) Close() error {
	err := r.ReadCloser.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	// Wait reports the kill; only the pipe error matters here.
	_ = r.cmd.Wait()
	return err
}

// StreamPCM reads 20 ms frames from r, encodes them, and sends each packet
// on send until r is exhausted or ctx is cancelled. A trailing partial
// frame is dropped.
func StreamPCM(ctx context.Context, r io.Reader, send chan<- []byte, enc Encoder) error {
	raw := make([]byte, frameLen*2)
	pcm := make([]int16, frameLen)
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read pcm: %w", err)
		}
		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}

		packet := make([]byte, maxOpusPacket)
		n, err := enc.Encode(pcm, packet)
		if err != nil {
			return fmt.Errorf("encode opus: %w", err)
		}

		select {
		case send <- packet[:n]:
		case <-ctx.Done():
			return nil
		}
	}
}

// Stream plays streamURL through ffmpeg into send until the stream ends or
// ctx is cancelled.
func Stream(ctx context.Context, ffmpeg, streamURL string, send chan<- []byte, enc Encoder) error {
	return streamFrom(ctx, FFmpeg(ffmpeg), streamURL, send, enc)
}

func streamFrom(ctx context.Context, src PCMSource, streamURL string, send chan<- []byte, enc Encoder) error {
	r, err := src(ctx, streamURL)
	if err != nil {
		return err
	}
	defer r.Close()
	return StreamPCM(ctx, r, send, enc)
}
