package recorder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/hraban/opus.v2"

	"github.com/Shonas301/plutarch/internal/voice"
)

// maxFrameSamples fits the longest opus frame (120 ms) in stereo.
const maxFrameSamples = 5760 * Channels

// Decoder turns opus packets into interleaved PCM. Decode returns the
// number of samples per channel.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// DecoderFactory creates one decoder per speaker stream.
type DecoderFactory func() (Decoder, error)

// NewOpusDecoder returns a 48 kHz stereo libopus decoder.
func NewOpusDecoder() (Decoder, error) {
	d, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MemberLookup resolves a Discord user ID to a channel member.
type MemberLookup func(userID string) (Member, bool)

// Session captures a voice connection into a Sink until stopped.
type Session struct {
	conn       voice.Conn
	sink       *Sink
	lookup     MemberLookup
	newDecoder DecoderFactory
	log        *slog.Logger

	mu       sync.Mutex
	users    map[uint32]string // ssrc -> user ID
	decoders map[uint32]Decoder

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDecoderFactory replaces the libopus decoder.
func WithDecoderFactory(f DecoderFactory) SessionOption {
	return func(s *Session) { s.newDecoder = f }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession prepares a capture of conn into sink and subscribes to
// speaking updates, which map packet SSRCs to users.
func NewSession(conn voice.Conn, sink *Sink, lookup MemberLookup, opts ...SessionOption) *Session {
	s := &Session{
		conn:       conn,
		sink:       sink,
		lookup:     lookup,
		newDecoder: NewOpusDecoder,
		log:        slog.Default(),
		users:      make(map[uint32]string),
		decoders:   make(map[uint32]Decoder),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	conn.OnSpeaking(s.mapSpeaker)
	return s
}

func (s *Session) mapSpeaker(userID string, ssrc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[ssrc] = userID
}

// Start runs the receive loop in a goroutine.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	pcm := make([]int16, maxFrameSamples)
	recv := s.conn.Receive()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-recv:
			if !ok {
				return
			}
			s.handle(pkt, pcm)
		}
	}
}

func (s *Session) handle(pkt *discordgo.Packet, pcm []int16) {
	if pkt == nil || len(pkt.Opus) == 0 {
		return
	}

	s.mu.Lock()
	userID, known := s.users[pkt.SSRC]
	dec := s.decoders[pkt.SSRC]
	s.mu.Unlock()
	if !known {
		return
	}

	if dec == nil {
		var err error
		if dec, err = s.newDecoder(); err != nil {
			s.log.Error("create opus decoder", "ssrc", pkt.SSRC, "error", err)
			return
		}
		s.mu.Lock()
		s.decoders[pkt.SSRC] = dec
		s.mu.Unlock()
	}

	n, err := dec.Decode(pkt.Opus, pcm)
	if err != nil {
		s.log.Debug("decode opus packet", "ssrc", pkt.SSRC, "error", err)
		return
	}

	m, ok := s.lookup(userID)
	if !ok {
		m = Member{ID: userID, DisplayName: userID}
	}
	if err := s.sink.Write(m, pcm[:n*Channels]); err != nil {
		s.log.Error("write audio frame", "user", m.DisplayName, "error", err)
	}
}

// Stop ends the capture, waits for the loop to exit, and closes the sink.
// Later calls return the first result.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.stopErr = s.sink.Close()
	})
	return s.stopErr
}

// Files lists the recorded tracks.
func (s *Session) Files() []voice.File {
	return s.sink.Files()
}

var _ voice.Capture = (*Session)(nil)
