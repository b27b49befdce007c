package recorder

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// pcmFormatWAV is the WAVE_FORMAT_PCM tag.
const pcmFormatWAV = 1

// wavTrack is one WAV file being written.
type wavTrack struct {
	name string
	path string
	f    *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
	next int64 // next slot to be written
}

func newWAVTrack(name, path string) (*wavTrack, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create track %s: %w", path, err)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		SourceBitDepth: BitDepth,
	}
	return &wavTrack{
		name: name,
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, SampleRate, BitDepth, Channels, pcmFormatWAV),
		buf:  buf,
	}, nil
}

// write appends interleaved samples.
func (t *wavTrack) write(pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	if cap(t.buf.Data) < len(pcm) {
		t.buf.Data = make([]int, len(pcm))
	}
	t.buf.Data = t.buf.Data[:len(pcm)]
	for i, s := range pcm {
		t.buf.Data[i] = int(s)
	}
	return t.enc.Write(t.buf)
}

// writeSilence appends n silent frames.
func (t *wavTrack) writeSilence(n int64) error {
	if n <= 0 {
		return nil
	}
	silence := make([]int16, FrameLen)
	for range n {
		if err := t.write(silence); err != nil {
			return err
		}
	}
	return nil
}

// writeAt writes one frame at slot, padding any gap since the previous
// frame with silence. Frames at or before the last written slot are
// appended directly. It returns the slot the frame landed in.
func (t *wavTrack) writeAt(slot int64, pcm []int16) (int64, error) {
	if slot > t.next {
		if err := t.writeSilence(slot - t.next); err != nil {
			return 0, err
		}
		t.next = slot
	}
	if err := t.write(pcm); err != nil {
		return 0, err
	}
	written := t.next
	t.next++
	return written, nil
}

// close finalizes the WAV header and closes the file.
func (t *wavTrack) close() error {
	encErr := t.enc.Close()
	fileErr := t.f.Close()
	if err := errors.Join(encErr, fileErr); err != nil {
		return fmt.Errorf("close track %s: %w", t.path, err)
	}
	return nil
}
