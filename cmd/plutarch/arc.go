// Arc commands run the stash analyses from the terminal with the same key
// slots and tables the bot uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/arc"
	"github.com/Shonas301/plutarch/internal/logging"
)

const arcTimeout = 2 * time.Minute

var (
	flagArcUser      string
	flagArcAll       bool
	flagArcNoQuests  bool
	flagArcHideout   bool
	flagArcProjects  bool
	flagArcMinProfit int
)

var arcCmd = &cobra.Command{
	Use:   "arc",
	Short: "Analyze an Arc Raiders stash",
}

var arcSellCmd = &cobra.Command{
	Use:   "sell",
	Short: "List items worth more sold than recycled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			recs, err := svc.Sell(ctx, user)
			if err != nil {
				return fmt.Errorf("analyze stash: %w", err)
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			pages, _ := arc.FormatSellRecommendations(recs, flagArcAll, "--all")
			return writePages(cmd.OutOrStdout(), "Items to Sell", pages)
		})
	},
}

var arcRecycleCmd = &cobra.Command{
	Use:   "recycle",
	Short: "List items worth more recycled than sold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			recs, err := svc.Recycle(ctx, user)
			if err != nil {
				return fmt.Errorf("analyze stash: %w", err)
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			pages, _ := arc.FormatRecycleRecommendations(recs, flagArcAll, "--all")
			return writePages(cmd.OutOrStdout(), "Items to Recycle", pages)
		})
	},
}

var arcOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Split the stash into sell, recycle, and hold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := arc.DefaultOptimizeParams()
		params.QuestAware = !flagArcNoQuests
		params.IncludeHideout = flagArcHideout
		params.IncludeProjects = flagArcProjects
		params.MinProfitThreshold = flagArcMinProfit

		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			res, err := svc.Optimize(ctx, user, params)
			if err != nil {
				return fmt.Errorf("optimize stash: %w", err)
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writeOptimize(cmd.OutOrStdout(), res, params)
		})
	},
}

var arcFindCmd = &cobra.Command{
	Use:   "find <item name>",
	Short: "Find stash items that recycle into an item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			target, sources, err := svc.Find(ctx, user, query)
			if err != nil {
				return fmt.Errorf("search stash: %w", err)
			}
			if target == nil {
				return fmt.Errorf("no item found matching %q", query)
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), sources)
			}
			name := target.Name.En(query)
			pages, _ := arc.FormatRecycleSources(sources, name, flagArcAll, "--all")
			return writePages(cmd.OutOrStdout(), "Stash → "+name, pages)
		})
	},
}

var arcProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the ArcTracker profile behind a key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			p, err := svc.Profile(ctx, user)
			if err != nil {
				return fmt.Errorf("read profile: %w", err)
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, p.Username)
			fmt.Fprintf(out, "  level:        %d\n", p.PlayerLevel)
			if p.MemberSince != "" {
				fmt.Fprintf(out, "  member since: %s\n", p.MemberSince)
			}
			return nil
		})
	},
}

var arcProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe every ArcTracker endpoint and print the response shapes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArc(cmd, func(ctx context.Context, svc *arc.Service, user string) error {
			c, err := svc.ClientFor(user)
			if errors.Is(err, arc.ErrNoKey) {
				c = svc.Public()
			}
			return arc.Probe(ctx, c, cmd.OutOrStdout())
		})
	},
}

func init() {
	arcCmd.PersistentFlags().StringVar(&flagArcUser, "user", "", "Discord user name selecting the key slot (default: arc.primary_user)")
	arcCmd.PersistentFlags().BoolVar(&flagArcAll, "all", false, "print every row instead of the first page")

	arcOptimizeCmd.Flags().BoolVar(&flagArcNoQuests, "no-quests", false, "ignore quest requirements when holding items")
	arcOptimizeCmd.Flags().BoolVar(&flagArcHideout, "hideout", false, "hold items needed for hideout upgrades")
	arcOptimizeCmd.Flags().BoolVar(&flagArcProjects, "projects", false, "hold items needed for projects")
	arcOptimizeCmd.Flags().IntVar(&flagArcMinProfit, "min-profit", 0, "minimum recycle margin over selling")

	arcCmd.AddCommand(arcSellCmd)
	arcCmd.AddCommand(arcRecycleCmd)
	arcCmd.AddCommand(arcOptimizeCmd)
	arcCmd.AddCommand(arcFindCmd)
	arcCmd.AddCommand(arcProfileCmd)
	arcCmd.AddCommand(arcProbeCmd)
}

// withArc builds the Arc service, resolves the user, and runs fn under
// the command timeout.
func withArc(cmd *cobra.Command, fn func(ctx context.Context, svc *arc.Service, user string) error) error {
	user := flagArcUser
	if user == "" {
		user = appConfig.Arc.PrimaryUser
	}
	svc := arc.NewService(appConfig.Arc, logging.L())

	ctx, cancel := context.WithTimeout(cmd.Context(), arcTimeout)
	defer cancel()
	return fn(ctx, svc, user)
}

// writePages prints each table page under a title, numbering the pages
// when there is more than one.
func writePages(w io.Writer, title string, pages []string) error {
	for i, page := range pages {
		t := title
		if len(pages) > 1 {
			t = fmt.Sprintf("%s (%d/%d)", title, i+1, len(pages))
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", t, plainPage(page)); err != nil {
			return err
		}
	}
	return nil
}

func writeOptimize(w io.Writer, res arc.OptimizeResult, params arc.OptimizeParams) error {
	sections := []struct {
		title string
		recs  []arc.Recommendation
	}{
		{"SELL", res.Sell},
		{"RECYCLE", res.Recycle},
		{"HOLD", res.Hold},
	}
	for _, sec := range sections {
		if len(sec.recs) == 0 {
			continue
		}
		pages, _ := arc.FormatRecommendationsWithTotal(sec.recs, flagArcAll, "--all")
		if err := writePages(w, sec.title, pages); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Sell:    %s credits from %d items\nRecycle: %s credits from %d items\nHold:    %d items (quest-aware: %t)\n",
		arc.FormatNumber(res.TotalSellValue), len(res.Sell),
		arc.FormatNumber(res.TotalRecycleValue), len(res.Recycle),
		res.TotalHoldCount, params.QuestAware)
	return err
}
