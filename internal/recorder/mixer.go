package recorder

import (
	"errors"
	"math"
)

// DefaultMixWindow is how many slots the compositor holds before writing.
// Frames older than the window are dropped.
const DefaultMixWindow = 50

// mixer sums every speaker into one track. Slots stay pending for a short
// window so that speakers whose packets arrive slightly apart still land in
// the same slot; once a slot leaves the window it is written and closed.
type mixer struct {
	out     *wavTrack
	window  int
	base    int64     // slot index of pending[0]
	pending [][]int32 // per-slot sums; nil is silence
	dropped int
}

func newMixer(out *wavTrack, window int) *mixer {
	if window <= 0 {
		window = DefaultMixWindow
	}
	return &mixer{out: out, window: window}
}

// add mixes pcm into slot.
func (m *mixer) add(slot int64, pcm []int16) error {
	if slot < m.base {
		m.dropped++
		return nil
	}
	for slot >= m.base+int64(m.window) {
		if err := m.flushOne(); err != nil {
			return err
		}
	}

	idx := int(slot - m.base)
	for len(m.pending) <= idx {
		m.pending = append(m.pending, nil)
	}
	acc := m.pending[idx]
	if acc == nil {
		acc = make([]int32, FrameLen)
		m.pending[idx] = acc
	}
	for i := 0; i < len(pcm) && i < FrameLen; i++ {
		acc[i] += int32(pcm[i])
	}
	return nil
}

// flushOne writes the oldest slot and advances the window.
func (m *mixer) flushOne() error {
	var acc []int32
	if len(m.pending) > 0 {
		acc = m.pending[0]
		m.pending = m.pending[1:]
	}
	m.base++
	if acc == nil {
		return m.out.writeSilence(1)
	}
	return m.out.write(saturate(acc))
}

// close writes every pending slot and finalizes the track.
func (m *mixer) close() error {
	var err error
	for len(m.pending) > 0 && err == nil {
		err = m.flushOne()
	}
	return errors.Join(err, m.out.close())
}

func saturate(acc []int32) []int16 {
	out := make([]int16, len(acc))
	for i, v := range acc {
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}
