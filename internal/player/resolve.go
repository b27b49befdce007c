package player

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// ErrInvalidURL is returned for links the player will not stream.
var ErrInvalidURL = errors.New("Not a valid url") //nolint:staticcheck // shown to users verbatim

var youtubeHosts = map[string]bool{
	"www.youtube.com":   true,
	"youtube.com":       true,
	"youtu.be":          true,
	"music.youtube.com": true,
}

var soundcloudHosts = map[string]bool{
	"soundcloud.com":   true,
	"m.soundcloud.com": true,
}

// ValidateURL accepts SoundCloud links, and YouTube links when youtube is
// enabled.
func ValidateURL(raw string, youtube bool) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if soundcloudHosts[host] || (youtube && youtubeHosts[host]) {
		return nil
	}
	return ErrInvalidURL
}

// Resolver turns a page URL into a directly streamable media URL.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// YTDLP resolves URLs with yt-dlp.
type YTDLP struct {
	Bin string
	Run Runner
}

// Resolve returns the best audio stream URL of pageURL.
func (y YTDLP) Resolve(ctx context.Context, pageURL string) (string, error) {
	bin := y.Bin
	if bin == "" {
		bin = "yt-dlp"
	}
	run := y.Run
	if run == nil {
		run = execOutput
	}

	out, err := run(ctx, bin, "-f", "bestaudio", "--no-playlist", "-g", pageURL)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", pageURL, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("resolve %s: no stream url", pageURL)
}
