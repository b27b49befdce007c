// Package monitor prints host CPU and memory usage at a fixed interval.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// BarWidth is the number of cells in a usage bar.
const BarWidth = 40

// Sample is one reading, in percent.
type Sample struct {
	CPU float64
	RAM float64
}

// Sampler reads host usage.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostSampler reads the local machine through gopsutil.
type HostSampler struct{}

// Sample returns CPU usage since the previous call and current memory use.
func (HostSampler) Sample(ctx context.Context) (Sample, error) {
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, fmt.Errorf("read cpu: %w", err)
	}
	if len(cpus) == 0 {
		return Sample{}, errors.New("read cpu: no data")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("read memory: %w", err)
	}
	return Sample{CPU: cpus[0], RAM: vm.UsedPercent}, nil
}

// Bar draws pct as a bar of width cells. Values are clamped to 0..100.
func Bar(pct float64, width int) string {
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}

// Format renders s as two lines, cpu first.
func Format(s Sample) string {
	return fmt.Sprintf("cpu%% %s %5.1f\nram%% %s %5.1f\n", Bar(s.CPU, BarWidth), s.CPU, Bar(s.RAM, BarWidth), s.RAM)
}

// Run writes a sample to w every interval until ctx is cancelled. A failed
// reading ends the run.
func Run(ctx context.Context, w io.Writer, s Sampler, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		sample, err := s.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if _, err := io.WriteString(w, Format(sample)); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	return nil
}
