package voice

import (
	"context"
	"errors"
	"sync"
)

// Leaver is a voice feature that must release a channel when the bot is
// left alone in it.
type Leaver interface {
	LeaveVoiceChannel(ctx context.Context, guildID, channelID string) error
}

// LeaverFunc adapts a function to Leaver.
type LeaverFunc func(ctx context.Context, guildID, channelID string) error

// LeaveVoiceChannel calls f.
func (f LeaverFunc) LeaveVoiceChannel(ctx context.Context, guildID, channelID string) error {
	return f(ctx, guildID, channelID)
}

// Registry holds the registered leavers.
type Registry struct {
	mu      sync.Mutex
	leavers []Leaver
}

// Register adds l to the registry.
func (r *Registry) Register(l Leaver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leavers = append(r.leavers, l)
}

// LeaveIfEmpty runs every leaver concurrently when memberCount is 1, i.e.
// only the bot remains. It reports whether the leavers ran, along with
// their joined errors.
func (r *Registry) LeaveIfEmpty(ctx context.Context, guildID, channelID string, memberCount int) (bool, error) {
	if memberCount != 1 {
		return false, nil
	}

	r.mu.Lock()
	leavers := append([]Leaver(nil), r.leavers...)
	r.mu.Unlock()

	errs := make([]error, len(leavers))
	var wg sync.WaitGroup
	for i, l := range leavers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.LeaveVoiceChannel(ctx, guildID, channelID)
		}()
	}
	wg.Wait()
	return true, errors.Join(errs...)
}
