package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/Shonas301/plutarch/internal/arc"
)

// Embed colors.
const (
	colorSell    = 0x2ECC71
	colorRecycle = 0x3498DB
	colorHold    = 0xF39C12
	colorError   = 0xE74C3C
	colorSummary = 0x95A5A6
)

const noArcKey = "No Arc API key configured for your account."

// arcFindUsage is the arcfind help text for prefix.
func arcFindUsage(prefix string) string {
	return fmt.Sprintf("Usage: `%[1]sarcfind <item name>` or `%[1]sarcfind all <item name>`", prefix)
}

// showAll reports whether args start with "all" and returns the rest.
func showAll(args []string) (bool, []string) {
	if len(args) > 0 && strings.EqualFold(args[0], "all") {
		return true, args[1:]
	}
	return false, args
}

// pageEmbeds wraps each page in an embed. Titles get an "(i/n)" suffix
// when all pages were requested and there is more than one.
func pageEmbeds(title string, pages []string, color int, all bool) []*discordgo.MessageEmbed {
	embeds := make([]*discordgo.MessageEmbed, len(pages))
	for i, desc := range pages {
		t := title
		if all && len(pages) > 1 {
			t = fmt.Sprintf("%s (%d/%d)", title, i+1, len(pages))
		}
		embeds[i] = &discordgo.MessageEmbed{Title: t, Description: desc, Color: color}
	}
	return embeds
}

func (b *Bot) sendEmbeds(req *request, embeds []*discordgo.MessageEmbed) {
	for _, e := range embeds {
		b.replyEmbed(req, e)
	}
}

// arcReady checks that the Arc service is wired and the author has a key.
func (b *Bot) arcReady(req *request) bool {
	if b.arc == nil || !b.arc.HasKey(req.AuthorName) {
		b.reply(req, noArcKey)
		return false
	}
	return true
}

// arcFailed reports err to the user. doing completes "Something went wrong
// while ... your stash."
func (b *Bot) arcFailed(req *request, command, doing string, err error) {
	if errors.Is(err, arc.ErrNoKey) {
		b.reply(req, noArcKey)
		return
	}
	if apiErr, ok := arc.AsAPIError(err); ok {
		b.log.Error("arctracker api error", "command", command, "error", err)
		b.replyEmbed(req, &discordgo.MessageEmbed{
			Title:       "API Error",
			Description: fmt.Sprintf("Error from ArcTracker: [%d] %s", apiErr.Status, apiErr.Code),
			Color:       colorError,
		})
		return
	}
	b.log.Error("unexpected error", "command", command, "error", err)
	b.reply(req, fmt.Sprintf("Something went wrong while %s your stash.", doing))
}

func (b *Bot) arcSell(ctx context.Context, req *request) {
	if !b.arcReady(req) {
		return
	}
	all, _ := showAll(req.Args)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	recs, err := b.arc.Sell(ctx, req.AuthorName)
	if err != nil {
		b.arcFailed(req, "arcsell", "analyzing", err)
		return
	}
	pages, _ := arc.FormatSellRecommendations(recs, all, b.prefix()+"arcsell all")
	b.sendEmbeds(req, pageEmbeds("💰 Items to Sell", pages, colorSell, all))
}

func (b *Bot) arcRecycle(ctx context.Context, req *request) {
	if !b.arcReady(req) {
		return
	}
	all, _ := showAll(req.Args)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	recs, err := b.arc.Recycle(ctx, req.AuthorName)
	if err != nil {
		b.arcFailed(req, "arcrecycle", "analyzing", err)
		return
	}
	pages, _ := arc.FormatRecycleRecommendations(recs, all, b.prefix()+"arcrecycle all")
	b.sendEmbeds(req, pageEmbeds("♻ Items to Recycle", pages, colorRecycle, all))
}

func (b *Bot) arcOptimize(ctx context.Context, req *request) {
	if !b.arcReady(req) {
		return
	}
	all, rest := showAll(req.Args)
	params, err := arc.ParseOptimizeFlags(rest)
	if err != nil {
		b.reply(req, "Invalid command flags. Use --min-profit <number>")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := b.arc.Optimize(ctx, req.AuthorName, params)
	if err != nil {
		b.arcFailed(req, "arcoptimize", "optimizing", err)
		return
	}

	hint := b.prefix() + "arcoptimize all"
	sections := []struct {
		title string
		recs  []arc.Recommendation
		color int
	}{
		{"💰 SELL", res.Sell, colorSell},
		{"♻ RECYCLE", res.Recycle, colorRecycle},
		{"📦 HOLD", res.Hold, colorHold},
	}
	var embeds []*discordgo.MessageEmbed
	for _, sec := range sections {
		if len(sec.recs) == 0 {
			continue
		}
		pages, _ := arc.FormatRecommendationsWithTotal(sec.recs, all, hint)
		embeds = append(embeds, pageEmbeds(sec.title, pages, sec.color, all)...)
	}
	embeds = append(embeds, &discordgo.MessageEmbed{
		Title:       "Optimization Summary",
		Description: optimizeSummary(res, params),
		Color:       colorSummary,
	})
	b.sendEmbeds(req, embeds)
}

func optimizeSummary(res arc.OptimizeResult, params arc.OptimizeParams) string {
	return fmt.Sprintf("**Sell:** %s credits from %d items\n**Recycle:** %s credits from %d items\n**Hold:** %d items (quest-aware: %t)",
		arc.FormatNumber(res.TotalSellValue), len(res.Sell),
		arc.FormatNumber(res.TotalRecycleValue), len(res.Recycle),
		res.TotalHoldCount, params.QuestAware)
}

func (b *Bot) arcFind(ctx context.Context, req *request) {
	if !b.arcReady(req) {
		return
	}
	all, rest := showAll(req.Args)
	query := strings.TrimSpace(strings.Join(rest, " "))
	if query == "" {
		b.reply(req, arcFindUsage(b.prefix()))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	target, sources, err := b.arc.Find(ctx, req.AuthorName, query)
	if err != nil {
		b.arcFailed(req, "arcfind", "searching", err)
		return
	}
	if target == nil {
		b.reply(req, fmt.Sprintf("No item found matching \"%s\".", query))
		return
	}

	name := target.Name.En(query)
	pages, _ := arc.FormatRecycleSources(sources, name, all, b.prefix()+"arcfind all "+query)
	b.sendEmbeds(req, pageEmbeds("🔍 Stash → "+name, pages, colorRecycle, all))
}

func (b *Bot) arcProfile(ctx context.Context, req *request) {
	if !b.arcReady(req) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	p, err := b.arc.Profile(ctx, req.AuthorName)
	if err != nil {
		b.arcFailed(req, "arcprofile", "reading", err)
		return
	}
	desc := fmt.Sprintf("**Level:** %d", p.PlayerLevel)
	if p.MemberSince != "" {
		desc += "\n**Member since:** " + p.MemberSince
	}
	b.replyEmbed(req, &discordgo.MessageEmbed{Title: p.Username, Description: desc, Color: colorSummary})
}
