package bot

import (
	"context"
	"errors"

	"github.com/Shonas301/plutarch/internal/player"
	"github.com/Shonas301/plutarch/internal/voice"
)

const notInVoice = "You are not currently in a voice channel"

// playerChannel returns the state of the author's voice channel, creating
// it when missing.
func (b *Bot) playerChannel(req *request) (*voice.ChannelState, bool) {
	channelID, ok := b.authorChannel(req)
	if !ok {
		b.reply(req, notInVoice)
		return nil, false
	}
	return b.channels.GetOrCreate(req.GuildID, channelID, b.directory.ChannelName(channelID)), true
}

func firstArg(req *request) string {
	if len(req.Args) == 0 {
		return ""
	}
	return req.Args[0]
}

func (b *Bot) playFailed(req *request, err error) {
	if errors.Is(err, player.ErrInvalidURL) {
		b.reply(req, player.ErrInvalidURL.Error())
		return
	}
	b.log.Error("play", "error", err)
	b.reply(req, "failed to connect to voice channel")
}

func (b *Bot) play(ctx context.Context, req *request) {
	st, ok := b.playerChannel(req)
	if !ok {
		return
	}
	if err := b.player.Play(ctx, st, firstArg(req)); err != nil {
		b.playFailed(req, err)
	}
}

func (b *Bot) queue(ctx context.Context, req *request) {
	st, ok := b.playerChannel(req)
	if !ok {
		return
	}
	if _, err := b.player.Enqueue(ctx, st, firstArg(req)); err != nil {
		b.playFailed(req, err)
	}
}

func (b *Bot) stop(_ context.Context, req *request) {
	channelID, ok := b.authorChannel(req)
	if !ok {
		b.reply(req, notInVoice)
		return
	}
	if st, ok := b.channels.Get(channelID); ok {
		b.player.Stop(st)
	}
}
