package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/Shonas301/plutarch/internal/recorder"
)

// Sender posts replies to a text channel.
type Sender interface {
	Send(channelID, content string) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// Directory answers questions about guild voice channels.
type Directory interface {
	// VoiceChannelOf returns the voice channel userID is connected to.
	VoiceChannelOf(guildID, userID string) (string, bool)
	// ChannelName returns the channel's name, or its ID when unknown.
	ChannelName(channelID string) string
	// VoiceMembers lists everyone connected to a voice channel, bots included.
	VoiceMembers(guildID, channelID string) []recorder.Member
}

type sessionSender struct {
	s *discordgo.Session
}

func (d sessionSender) Send(channelID, content string) error {
	_, err := d.s.ChannelMessageSend(channelID, content)
	return err
}

func (d sessionSender) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.s.ChannelMessageSendEmbed(channelID, embed)
	return err
}

// stateDirectory reads the discordgo state cache, which tracks voice states
// when the guild voice states intent is enabled.
type stateDirectory struct {
	state *discordgo.State
}

func (d stateDirectory) voiceStates(guildID string) []discordgo.VoiceState {
	g, err := d.state.Guild(guildID)
	if err != nil {
		return nil
	}
	d.state.RLock()
	defer d.state.RUnlock()
	out := make([]discordgo.VoiceState, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		out = append(out, *vs)
	}
	return out
}

func (d stateDirectory) VoiceChannelOf(guildID, userID string) (string, bool) {
	for _, vs := range d.voiceStates(guildID) {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

func (d stateDirectory) ChannelName(channelID string) string {
	ch, err := d.state.Channel(channelID)
	if err != nil || ch.Name == "" {
		return channelID
	}
	return ch.Name
}

func (d stateDirectory) VoiceMembers(guildID, channelID string) []recorder.Member {
	var members []recorder.Member
	for _, vs := range d.voiceStates(guildID) {
		if vs.ChannelID != channelID {
			continue
		}
		m := vs.Member
		if cached, err := d.state.Member(guildID, vs.UserID); err == nil {
			m = cached
		}
		members = append(members, toMember(vs.UserID, m))
	}
	return members
}

func toMember(userID string, m *discordgo.Member) recorder.Member {
	out := recorder.Member{ID: userID, DisplayName: userID}
	if m == nil || m.User == nil {
		return out
	}
	out.Bot = m.User.Bot
	switch {
	case m.Nick != "":
		out.DisplayName = m.Nick
	case m.User.GlobalName != "":
		out.DisplayName = m.User.GlobalName
	case m.User.Username != "":
		out.DisplayName = m.User.Username
	}
	return out
}
