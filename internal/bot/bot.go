// Package bot is the Discord front end: it routes prefixed text commands to
// the recorder, the player, and the Arc stash service, and leaves voice
// channels once everyone else has gone.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Shonas301/plutarch/internal/arc"
	"github.com/Shonas301/plutarch/internal/config"
	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/internal/player"
	"github.com/Shonas301/plutarch/internal/recorder"
	"github.com/Shonas301/plutarch/internal/transcribe"
	"github.com/Shonas301/plutarch/internal/voice"
	"github.com/Shonas301/plutarch/pkg/types"
)

// commandTimeout bounds commands that call out to the Arc API.
const commandTimeout = 2 * time.Minute

// defaultPrefix is used when no command prefix is configured.
const defaultPrefix = "%"

// ErrNoSession is returned by Open when the bot was built without a
// discordgo session.
var ErrNoSession = errors.New("bot has no discord session")

// Player plays audio links in voice channels.
type Player interface {
	Play(ctx context.Context, st *voice.ChannelState, url string) error
	Enqueue(ctx context.Context, st *voice.ChannelState, url string) (bool, error)
	Stop(st *voice.ChannelState)
	voice.Leaver
}

// ArcService answers stash questions for a Discord user name.
type ArcService interface {
	HasKey(user string) bool
	Sell(ctx context.Context, user string) ([]arc.Recommendation, error)
	Recycle(ctx context.Context, user string) ([]arc.Recommendation, error)
	Optimize(ctx context.Context, user string, params arc.OptimizeParams) (arc.OptimizeResult, error)
	Find(ctx context.Context, user, query string) (*arc.Item, []arc.RecycleSource, error)
	Profile(ctx context.Context, user string) (*arc.UserProfile, error)
}

// Deps are the collaborators of a Bot. Session may be nil when Sender,
// Directory, and Joiner are all provided. Store, Arc, and Transcriber are
// optional.
type Deps struct {
	Session     *discordgo.Session
	Sender      Sender
	Directory   Directory
	Joiner      voice.Joiner
	Player      Player
	Store       types.Store
	Arc         ArcService
	Transcriber transcribe.Transcriber
	// Decoders overrides the opus decoder used by recordings.
	Decoders    recorder.DecoderFactory
	Now         func() time.Time
	Logger      *slog.Logger
}

type handler func(ctx context.Context, req *request)

// request is one parsed command invocation.
type request struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	// AuthorName is the account user name, which selects the Arc key slot.
	AuthorName string
	Args       []string
}

// Bot is a running Discord bot.
type Bot struct {
	cfg       config.Config
	session   *discordgo.Session
	sender    Sender
	directory Directory
	joiner    voice.Joiner
	player    Player
	store     types.Store
	arc       ArcService
	scribe    transcribe.Transcriber
	decoders  recorder.DecoderFactory
	now       func() time.Time
	log       *slog.Logger

	channels *voice.Manager
	leavers  *voice.Registry
	commands map[string]handler

	ctx    context.Context
	cancel context.CancelFunc
	closer func()
}

// New builds a bot from cfg. When deps carries no session and some Discord
// collaborator is missing, New creates a session with every intent enabled.
func New(cfg config.Config, deps Deps) (*Bot, error) {
	session := deps.Session
	if session == nil && (deps.Sender == nil || deps.Directory == nil || deps.Joiner == nil) {
		s, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
		s.Identify.Intents = discordgo.IntentsAll
		session = s
	}

	b := &Bot{
		cfg:       cfg,
		session:   session,
		sender:    deps.Sender,
		directory: deps.Directory,
		joiner:    deps.Joiner,
		player:    deps.Player,
		store:     deps.Store,
		arc:       deps.Arc,
		scribe:    deps.Transcriber,
		decoders:  deps.Decoders,
		now:       deps.Now,
		log:       logging.OrDefault(deps.Logger).With("component", "bot"),
		channels:  voice.NewManager(),
		leavers:   &voice.Registry{},
	}
	if b.sender == nil {
		b.sender = sessionSender{s: session}
	}
	if b.directory == nil {
		b.directory = stateDirectory{state: session.State}
	}
	if b.joiner == nil {
		b.joiner = voice.DiscordJoiner{Session: session}
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.player == nil {
		p := player.New(b.joiner, player.Options{
			Resolver: player.YTDLP{Bin: cfg.Audio.YTDLP},
			Source:   player.FFmpeg(cfg.Audio.FFmpeg),
			YouTube:  cfg.Audio.YouTubeEnabled,
			Logger:   b.log,
		})
		b.player = p
		b.closer = p.Close
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	b.leavers.Register(b.player)
	b.leavers.Register(voice.LeaverFunc(b.leaveRecording))
	b.commands = map[string]handler{
		"record":           b.record,
		"stop-recording":   b.stopRecording,
		"recording-status": b.recordingStatus,
		"play":             b.play,
		"queue":            b.queue,
		"stop":             b.stop,
		"arcsell":          b.arcSell,
		"arcrecycle":       b.arcRecycle,
		"arcoptimize":      b.arcOptimize,
		"arcfind":          b.arcFind,
		"arcprofile":       b.arcProfile,
	}

	if session != nil {
		session.AddHandler(b.onReady)
		session.AddHandler(b.onMessageCreate)
		session.AddHandler(b.onVoiceStateUpdate)
	}
	return b, nil
}

// Open connects to the Discord gateway.
func (b *Bot) Open() error {
	if b.session == nil {
		return ErrNoSession
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close stops running recordings and playback, leaves every voice channel,
// and closes the gateway connection.
func (b *Bot) Close() error {
	b.cancel()
	var errs []error
	for _, id := range b.channels.ChannelIDs() {
		st, ok := b.channels.Get(id)
		if !ok {
			continue
		}
		if err := b.leaveRecording(context.Background(), st.GuildID, id); err != nil {
			errs = append(errs, err)
		}
		_ = b.player.LeaveVoiceChannel(context.Background(), st.GuildID, id)
		b.channels.Remove(id)
		if err := st.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.closer != nil {
		b.closer()
	}
	if b.session != nil {
		if err := b.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channels exposes the voice channel states.
func (b *Bot) Channels() *voice.Manager {
	return b.channels
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	name := b.cfg.Discord.BotName
	if r.User != nil {
		name = r.User.Username
	}
	b.log.Info(fmt.Sprintf("bot %s is ready", name), "guilds", len(r.Guilds))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, args, ok := parseCommand(m.Content, b.cfg.Discord.CommandPrefix)
	if !ok {
		return
	}
	h, ok := b.commands[name]
	if !ok {
		return
	}

	req := &request{
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Args:       args,
	}
	b.log.Info("command", "command", name, "user", m.Author.Username, "guild_id", m.GuildID)
	h(b.ctx, req)
}

// prefix is the configured command prefix.
func (b *Bot) prefix() string {
	if b.cfg.Discord.CommandPrefix == "" {
		return defaultPrefix
	}
	return b.cfg.Discord.CommandPrefix
}

// parseCommand splits "<prefix>name args..." into the lower-cased command
// name and its arguments.
func parseCommand(content, prefix string) (string, []string, bool) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	rest, ok := strings.CutPrefix(content, prefix)
	if !ok {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || rest[0] == ' ' {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || v.ChannelID != "" {
		return
	}
	before := v.BeforeUpdate
	if before == nil || before.ChannelID == "" {
		return
	}
	b.leaveIfEmpty(b.ctx, before.GuildID, before.ChannelID)
}

// leaveIfEmpty leaves channelID when the bot is the only member left.
func (b *Bot) leaveIfEmpty(ctx context.Context, guildID, channelID string) {
	count := len(b.directory.VoiceMembers(guildID, channelID))
	left, err := b.leavers.LeaveIfEmpty(ctx, guildID, channelID, count)
	if err != nil {
		b.log.Warn("leave voice channel", "channel_id", channelID, "error", err)
	}
	if !left {
		return
	}
	if st, ok := b.channels.Remove(channelID); ok {
		if err := st.Disconnect(); err != nil {
			b.log.Warn("disconnect", "channel_id", channelID, "error", err)
		}
	}
	b.log.Info("left empty voice channel", "channel_id", channelID)
}

func (b *Bot) reply(req *request, content string) {
	if err := b.sender.Send(req.ChannelID, content); err != nil {
		b.log.Warn("send message", "channel_id", req.ChannelID, "error", err)
	}
}

func (b *Bot) replyEmbed(req *request, embed *discordgo.MessageEmbed) {
	if err := b.sender.SendEmbed(req.ChannelID, embed); err != nil {
		b.log.Warn("send embed", "channel_id", req.ChannelID, "error", err)
	}
}

// authorChannel resolves the voice channel of the command's author.
func (b *Bot) authorChannel(req *request) (string, bool) {
	return b.directory.VoiceChannelOf(req.GuildID, req.AuthorID)
}
