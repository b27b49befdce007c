// Package player streams SoundCloud and YouTube links into voice channels.
// Each channel gets one goroutine that plays tracks in order and leaves the
// channel when there is nothing left to play.
package player

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/internal/voice"
)

// Options configures a Player. Zero fields get working defaults.
type Options struct {
	Resolver   Resolver
	Source     PCMSource
	NewEncoder func() (Encoder, error)
	// YouTube enables YouTube links.
	YouTube    bool
	Logger     *slog.Logger
}

// Player owns playback for every channel it has been asked to play in.
type Player struct {
	joiner voice.Joiner
	opts   Options
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	channels map[string]*channelPlayer
}

type channelPlayer struct {
	mu      sync.Mutex
	state   *voice.ChannelState
	pending string             // next track to start
	stop    context.CancelFunc // cancels the current track; nil when idle
	wake    chan struct{}
}

func (cp *channelPlayer) busy() bool { return cp.stop != nil || cp.pending != "" }

func (cp *channelPlayer) signal() {
	select {
	case cp.wake <- struct{}{}:
	default:
	}
}

// New returns a Player that joins channels through joiner.
func New(joiner voice.Joiner, opts Options) *Player {
	if opts.Resolver == nil {
		opts.Resolver = YTDLP{}
	}
	if opts.Source == nil {
		opts.Source = FFmpeg("")
	}
	if opts.NewEncoder == nil {
		opts.NewEncoder = NewOpusEncoder
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		joiner:   joiner,
		opts:     opts,
		log:      logging.OrDefault(opts.Logger),
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[string]*channelPlayer),
	}
}

// Close stops every track and waits for the channel goroutines to exit.
func (p *Player) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Player) channelFor(st *voice.ChannelState) *channelPlayer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cp, ok := p.channels[st.ChannelID]; ok {
		cp.mu.Lock()
		cp.state = st
		cp.mu.Unlock()
		return cp
	}
	cp := &channelPlayer{state: st, wake: make(chan struct{}, 1)}
	p.channels[st.ChannelID] = cp
	p.wg.Add(1)
	go p.run(cp)
	return cp
}

func (p *Player) lookup(channelID string) (*channelPlayer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp, ok := p.channels[channelID]
	return cp, ok
}

// Play starts pageURL in st's channel, replacing the current track. When a
// track was already playing the bot stays connected afterwards.
func (p *Player) Play(ctx context.Context, st *voice.ChannelState, pageURL string) error {
	if err := ValidateURL(pageURL, p.opts.YouTube); err != nil {
		return err
	}
	if _, err := st.Connect(ctx, p.joiner); err != nil {
		return err
	}

	cp := p.channelFor(st)
	cp.mu.Lock()
	if cp.stop != nil {
		cp.state.Player().RemainConnected = true
		cp.stop()
	}
	cp.pending = pageURL
	cp.mu.Unlock()
	cp.signal()
	return nil
}

// Enqueue adds pageURL to the channel's queue, or plays it right away when
// nothing is playing. It reports whether the link was queued.
func (p *Player) Enqueue(ctx context.Context, st *voice.ChannelState, pageURL string) (bool, error) {
	if err := ValidateURL(pageURL, p.opts.YouTube); err != nil {
		return false, err
	}

	cp := p.channelFor(st)
	cp.mu.Lock()
	if cp.busy() {
		ps := cp.state.Player()
		ps.Queue = append(ps.Queue, pageURL)
		ps.RemainConnected = true
		cp.mu.Unlock()
		return true, nil
	}
	cp.mu.Unlock()
	return false, p.Play(ctx, st, pageURL)
}

// Stop ends the current track. The bot then leaves the channel.
func (p *Player) Stop(st *voice.ChannelState) {
	cp, ok := p.lookup(st.ChannelID)
	if !ok {
		return
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.state.Player().RemainConnected = false
	cp.pending = ""
	if cp.stop != nil {
		cp.stop()
	}
}

// LeaveVoiceChannel stops playback in channelID and drops its queue, so the
// bot does not rejoin for the next song.
func (p *Player) LeaveVoiceChannel(_ context.Context, _, channelID string) error {
	cp, ok := p.lookup(channelID)
	if !ok {
		return nil
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	ps := cp.state.Player()
	ps.RemainConnected = false
	ps.Queue = nil
	cp.pending = ""
	if cp.stop != nil {
		cp.stop()
	}
	return nil
}

// Snapshot returns a copy of the playback state of channelID.
func (p *Player) Snapshot(channelID string) (voice.PlayerState, bool) {
	cp, ok := p.lookup(channelID)
	if !ok {
		return voice.PlayerState{}, false
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	ps := *cp.state.Player()
	ps.Queue = slices.Clone(ps.Queue)
	return ps, true
}

func (p *Player) run(cp *channelPlayer) {
	defer p.wg.Done()
	for {
		pageURL, ctx, ok := p.next(cp)
		if !ok {
			return
		}
		if err := p.playTrack(ctx, cp, pageURL); err != nil && ctx.Err() == nil {
			p.log.Warn("track failed", "url", pageURL, "error", err)
		}
		p.finish(cp)
	}
}

// next blocks until a track is pending and marks it as playing.
func (p *Player) next(cp *channelPlayer) (string, context.Context, bool) {
	for {
		cp.mu.Lock()
		if cp.pending != "" {
			pageURL := cp.pending
			cp.pending = ""
			ctx, cancel := context.WithCancel(p.ctx)
			cp.stop = cancel
			cp.state.Player().Playing = pageURL
			cp.mu.Unlock()
			return pageURL, ctx, true
		}
		cp.mu.Unlock()

		select {
		case <-cp.wake:
		case <-p.ctx.Done():
			return "", nil, false
		}
	}
}

func (p *Player) playTrack(ctx context.Context, cp *channelPlayer, pageURL string) error {
	cp.mu.Lock()
	st := cp.state
	cp.mu.Unlock()

	conn, err := st.Connect(ctx, p.joiner)
	if err != nil {
		return err
	}
	streamURL, err := p.opts.Resolver.Resolve(ctx, pageURL)
	if err != nil {
		return err
	}
	enc, err := p.opts.NewEncoder()
	if err != nil {
		return err
	}

	if err := conn.Speaking(true); err != nil {
		p.log.Debug("speaking on", "error", err)
	}
	defer func() { _ = conn.Speaking(false) }()

	p.log.Info("playing", "channel_id", st.ChannelID, "url", pageURL)
	return streamFrom(ctx, p.opts.Source, streamURL, conn.Send(), enc)
}

// finish runs after every track: it starts a replacement or the queue head,
// or leaves the channel.
func (p *Player) finish(cp *channelPlayer) {
	cp.mu.Lock()
	cp.stop()
	cp.stop = nil
	ps := cp.state.Player()
	ps.Playing = ""

	if cp.pending != "" {
		cp.mu.Unlock()
		return
	}
	if ps.RemainConnected && len(ps.Queue) > 0 {
		cp.pending = ps.Queue[0]
		ps.Queue = ps.Queue[1:]
		cp.mu.Unlock()
		return
	}

	ps.Queue = nil
	ps.RemainConnected = false
	st := cp.state
	cp.mu.Unlock()

	if err := st.Disconnect(); err != nil {
		p.log.Warn("disconnect failed", "channel_id", st.ChannelID, "error", err)
	}
}
