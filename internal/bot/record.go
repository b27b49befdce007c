package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shonas301/plutarch/internal/recorder"
	"github.com/Shonas301/plutarch/internal/transcribe"
	"github.com/Shonas301/plutarch/internal/voice"
	"github.com/Shonas301/plutarch/pkg/types"
)

func (b *Bot) record(ctx context.Context, req *request) {
	channelID, ok := b.authorChannel(req)
	if !ok {
		b.reply(req, "you need to be in a voice channel to record")
		return
	}
	st := b.channels.GetOrCreate(req.GuildID, channelID, b.directory.ChannelName(channelID))
	if st.Recorder() != nil {
		b.reply(req, "already recording in this channel")
		return
	}

	conn, err := st.Connect(ctx, b.joiner)
	if err != nil {
		b.log.Error("connect for recording", "channel_id", channelID, "error", err)
		b.reply(req, "failed to connect to voice channel")
		return
	}

	var members []recorder.Member
	for _, m := range b.directory.VoiceMembers(req.GuildID, channelID) {
		if !m.Bot {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		b.reply(req, "no users to record in this channel")
		return
	}

	started := b.now().UTC()
	sessionID := recorder.SessionID(started)
	dir := recorder.SessionDir(b.cfg.Recording.OutputDir, st.Name, sessionID)
	sink, err := recorder.NewSink(dir, sessionID, members, recorder.SinkOptions{
		Composite: b.cfg.Recording.Composite,
		Now:       b.now,
		Logger:    b.log,
	})
	if err != nil {
		b.log.Error("open recording", "dir", dir, "error", err)
		b.reply(req, "failed to start recording")
		return
	}

	opts := []recorder.SessionOption{recorder.WithSessionLogger(b.log)}
	if b.decoders != nil {
		opts = append(opts, recorder.WithDecoderFactory(b.decoders))
	}
	lookup := b.memberLookup(req.GuildID, channelID, members)
	capture := recorder.NewSession(conn, sink, lookup, opts...)
	capture.Start(b.ctx)

	rec := &voice.RecorderState{Files: fileMap(capture.Files()), Capture: capture}
	if b.store != nil {
		s := &types.Session{
			GuildID:     req.GuildID,
			ChannelID:   channelID,
			ChannelName: st.Name,
			Dir:         dir,
			State:       types.SessionRecording,
			StartedAt:   started,
		}
		if err := b.store.CreateSession(s); err != nil {
			b.log.Warn("persist session", "error", err)
		} else {
			rec.SessionID = s.ID
		}
	}
	st.SetRecorder(rec)

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.DisplayName
	}
	b.reply(req, fmt.Sprintf("recording started for: %s\nfiles will be saved to: `%s`", strings.Join(names, ", "), dir))
	b.log.Info("started recording", "channel", st.Name, "users", len(members), "session", sessionID)
}

// memberLookup resolves speakers against the members present when the
// recording started, then against the channel's current members.
func (b *Bot) memberLookup(guildID, channelID string, members []recorder.Member) recorder.MemberLookup {
	byID := make(map[string]recorder.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return func(userID string) (recorder.Member, bool) {
		if m, ok := byID[userID]; ok {
			return m, true
		}
		for _, m := range b.directory.VoiceMembers(guildID, channelID) {
			if m.ID == userID {
				return m, true
			}
		}
		return recorder.Member{}, false
	}
}

func fileMap(files []voice.File) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.Name] = f.Path
	}
	return m
}

// activeRecording returns the channel state and recording of the author's
// channel. The recording is nil when none is running.
func (b *Bot) activeRecording(req *request) (*voice.ChannelState, *voice.RecorderState, bool) {
	channelID, ok := b.authorChannel(req)
	if !ok {
		b.reply(req, "you need to be in a voice channel")
		return nil, nil, false
	}
	st, ok := b.channels.Get(channelID)
	if !ok {
		return nil, nil, true
	}
	return st, st.Recorder(), true
}

func (b *Bot) stopRecording(ctx context.Context, req *request) {
	st, rec, ok := b.activeRecording(req)
	if !ok {
		return
	}
	if rec == nil {
		b.reply(req, "not currently recording in this channel")
		return
	}
	st.SetRecorder(nil)
	if err := rec.Capture.Stop(); err != nil {
		b.log.Warn("stop recording", "channel_id", st.ChannelID, "error", err)
	}

	files := rec.Capture.Files()
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = fmt.Sprintf("- %s: `%s`", f.Name, f.Path)
	}
	b.reply(req, "recording stopped. files saved:\n"+strings.Join(lines, "\n"))

	trackIDs := b.persistTracks(rec.SessionID, files)
	b.transcribe(ctx, req, rec.SessionID, files, trackIDs)
	b.log.Info("stopped recording", "channel", st.Name)
}

// persistTracks closes the stored session and records its files. It
// returns track IDs by file name.
func (b *Bot) persistTracks(sessionID string, files []voice.File) map[string]string {
	ids := make(map[string]string)
	if b.store == nil || sessionID == "" {
		return ids
	}
	if err := b.store.FinishSession(sessionID, b.now().UTC()); err != nil {
		b.log.Warn("finish session", "session_id", sessionID, "error", err)
	}
	for _, f := range files {
		t := &types.Track{
			SessionID:   sessionID,
			UserID:      f.UserID,
			DisplayName: f.Name,
			Path:        f.Path,
			Composite:   f.Name == types.CompositeKey,
		}
		if err := b.store.AddTrack(t); err != nil {
			b.log.Warn("persist track", "path", f.Path, "error", err)
			continue
		}
		ids[f.Name] = t.ID
	}
	return ids
}

func (b *Bot) transcribe(ctx context.Context, req *request, sessionID string, files []voice.File, trackIDs map[string]string) {
	if b.scribe == nil {
		b.reply(req, "transcription not configured, skipping transcription")
		return
	}
	b.reply(req, "transcribing audio files...")

	results, err := transcribe.TranscribeAll(ctx, b.scribe, files, b.cfg.Transcribe.Concurrency)
	if err != nil {
		b.log.Error("transcribe", "error", err)
		return
	}
	for _, r := range results {
		if r.Err != nil {
			b.log.Error("transcribe track", "path", r.Path, "error", r.Err)
		}
		b.saveTranscript(sessionID, trackIDs[r.Name], r)
	}

	chunks := transcribe.Chunk(transcribe.FormatResults(results), transcribe.MessageLimit)
	if len(chunks) == 0 {
		b.reply(req, "no transcriptions generated (possibly no speech detected)")
		return
	}
	for _, c := range chunks {
		b.reply(req, c)
	}
}

func (b *Bot) saveTranscript(sessionID, trackID string, r transcribe.Result) {
	if b.store == nil || sessionID == "" {
		return
	}
	if r.Err == nil && r.Text == "" {
		return
	}
	t := &types.Transcript{
		SessionID: sessionID,
		TrackID:   trackID,
		Speaker:   r.Name,
		Text:      r.Text,
		CreatedAt: b.now().UTC(),
	}
	if r.Err != nil {
		t.Error = r.Err.Error()
	}
	if err := b.store.SaveTranscript(t); err != nil {
		b.log.Warn("persist transcript", "speaker", r.Name, "error", err)
	}
}

func (b *Bot) recordingStatus(_ context.Context, req *request) {
	_, rec, ok := b.activeRecording(req)
	if !ok {
		return
	}
	if rec == nil {
		b.reply(req, "not recording in this channel")
		return
	}
	var users []string
	for _, f := range rec.Capture.Files() {
		if f.Name != types.CompositeKey {
			users = append(users, f.Name)
		}
	}
	b.reply(req, "recording active for: "+strings.Join(users, ", "))
}

// leaveRecording stops a recording in channelID without transcribing it.
func (b *Bot) leaveRecording(_ context.Context, _, channelID string) error {
	st, ok := b.channels.Get(channelID)
	if !ok {
		return nil
	}
	rec := st.Recorder()
	if rec == nil {
		return nil
	}
	st.SetRecorder(nil)
	err := rec.Capture.Stop()
	b.persistTracks(rec.SessionID, rec.Capture.Files())
	b.log.Info("cleaned up recording on voice channel leave", "channel", st.Name)
	if err != nil {
		return fmt.Errorf("stop recording in %s: %w", st.Name, err)
	}
	return nil
}
