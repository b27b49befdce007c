package voice

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Conn is a voice connection.
type Conn interface {
	// Receive yields opus packets from other speakers.
	Receive() <-chan *discordgo.Packet
	// Send accepts 20 ms opus frames for playback.
	Send() chan<- []byte
	Speaking(speaking bool) error
	// OnSpeaking registers fn for speaking updates, which map SSRCs to users.
	OnSpeaking(fn func(userID string, ssrc uint32))
	Disconnect() error
}

// Joiner opens voice connections.
type Joiner interface {
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
}

// DiscordJoiner joins channels through a discordgo session. The bot joins
// unmuted and undeafened so it can both play and record.
type DiscordJoiner struct {
	Session *discordgo.Session
}

// Join connects to the channel.
func (j DiscordJoiner) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := j.Session.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return nil, err
	}
	return discordConn{vc: vc}, nil
}

type discordConn struct {
	vc *discordgo.VoiceConnection
}

func (c discordConn) Receive() <-chan *discordgo.Packet { return c.vc.OpusRecv }

func (c discordConn) Send() chan<- []byte { return c.vc.OpusSend }

func (c discordConn) Speaking(b bool) error { return c.vc.Speaking(b) }

func (c discordConn) Disconnect() error { return c.vc.Disconnect() }

func (c discordConn) OnSpeaking(fn func(userID string, ssrc uint32)) {
	c.vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		fn(vs.UserID, uint32(vs.SSRC))
	})
}
