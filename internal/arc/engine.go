package arc

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// Catalog is the public reference data the engine decides against.
type Catalog struct {
	Items    map[string]*Item
	Quests   map[string]*Quest
	Hideout  map[string]*HideoutModule
	Projects map[string]*Project
	Recycle  map[string]int // deep recycle value per unit, by item ID
}

// NewCatalog builds a catalog and its deep recycle table. Hideout and
// projects may be nil.
func NewCatalog(items map[string]*Item, quests map[string]*Quest) *Catalog {
	return &Catalog{
		Items:   items,
		Quests:  quests,
		Recycle: BuildDeepRecycleTable(items),
	}
}

// BuildDeepRecycleTable resolves every item's recycle chain down to base
// materials. The value of an item is the sum over its outputs of
// max(sell, deep value) times quantity; base materials are worth 0.
// Each item is resolved once.
func BuildDeepRecycleTable(items map[string]*Item) map[string]int {
	table := make(map[string]int, len(items))

	var resolve func(id string) int
	resolve = func(id string) int {
		if v, ok := table[id]; ok {
			return v
		}
		item := items[id]
		// Seed before recursing so a malformed cycle terminates.
		table[id] = 0
		if item == nil || len(item.RecyclesInto) == 0 {
			return 0
		}
		total := 0
		for _, matID := range sortedKeys(item.RecyclesInto) {
			mat := items[matID]
			if mat == nil {
				continue
			}
			total += max(mat.Value, resolve(matID)) * item.RecyclesInto[matID]
		}
		table[id] = total
		return total
	}

	for _, id := range sortedKeys(items) {
		resolve(id)
	}
	return table
}

func newRecommendation(si StashItem, item *Item, recycle map[string]int, action string) Recommendation {
	sell := item.Value * si.Quantity
	rcl := recycle[si.ItemID] * si.Quantity
	return Recommendation{
		ItemID:       si.ItemID,
		Name:         item.Name.En(si.Name),
		Quantity:     si.Quantity,
		SellValue:    sell,
		RecycleValue: rcl,
		Margin:       sell - rcl,
		Action:       action,
	}
}

// AnalyzeSell lists stash items worth more sold than recycled, highest
// total sell value first. Zero-value items are skipped.
func AnalyzeSell(stash []StashItem, cat *Catalog) []Recommendation {
	var recs []Recommendation
	for _, si := range stash {
		item, ok := cat.Items[si.ItemID]
		if !ok || item.Value == 0 {
			continue
		}
		rec := newRecommendation(si, item, cat.Recycle, ActionSell)
		if rec.SellValue > rec.RecycleValue {
			recs = append(recs, rec)
		}
	}
	sortBySellDesc(recs)
	return recs
}

// AnalyzeRecycle lists stash items worth more recycled than sold, biggest
// recycle advantage (most negative margin) first.
func AnalyzeRecycle(stash []StashItem, cat *Catalog) []Recommendation {
	var recs []Recommendation
	for _, si := range stash {
		item, ok := cat.Items[si.ItemID]
		if !ok || len(item.RecyclesInto) == 0 {
			continue
		}
		rec := newRecommendation(si, item, cat.Recycle, ActionRecycle)
		if rec.RecycleValue > rec.SellValue {
			recs = append(recs, rec)
		}
	}
	sortByMarginAsc(recs)
	return recs
}

// QuestHoldSet returns item IDs referenced by quests: granted and reward
// items, plus every item whose English name appears in an objective.
func QuestHoldSet(quests map[string]*Quest, items map[string]*Item) map[string]bool {
	hold := make(map[string]bool)

	names := make(map[string]string, len(items))
	for id, item := range items {
		if n := strings.ToLower(item.Name.En("")); n != "" {
			names[id] = n
		}
	}

	for _, q := range quests {
		for _, iq := range q.GrantedItemIDs {
			hold[iq.ItemID] = true
		}
		for _, iq := range q.RewardItemIDs {
			hold[iq.ItemID] = true
		}
		for _, obj := range q.Objectives {
			text := strings.ToLower(obj.En(""))
			if text == "" {
				continue
			}
			for id, name := range names {
				if strings.Contains(text, name) {
					hold[id] = true
				}
			}
		}
	}
	return hold
}

// RequirementHoldSet returns item IDs consumed by hideout upgrades and
// enabled projects.
func RequirementHoldSet(hideout map[string]*HideoutModule, projects map[string]*Project) map[string]bool {
	hold := make(map[string]bool)
	for _, m := range hideout {
		for _, lvl := range m.Levels {
			for _, iq := range lvl.RequirementItemIDs {
				hold[iq.ItemID] = true
			}
		}
	}
	for _, p := range projects {
		if p.Disabled {
			continue
		}
		for _, ph := range p.Phases {
			for _, iq := range ph.RequirementItemIDs {
				hold[iq.ItemID] = true
			}
		}
	}
	return hold
}

// AnalyzeOptimize assigns every stash item to sell, recycle, or hold.
// Held items come from the quest (and optionally hideout and project) hold
// sets. The rest go to whichever action yields more; ties sell. Items whose
// |sell - recycle| is below MinProfitThreshold are left out.
func AnalyzeOptimize(stash []StashItem, cat *Catalog, params OptimizeParams) OptimizeResult {
	hold := make(map[string]bool)
	if params.QuestAware {
		maps.Copy(hold, QuestHoldSet(cat.Quests, cat.Items))
	}
	var hideout map[string]*HideoutModule
	if params.IncludeHideout {
		hideout = cat.Hideout
	}
	var projects map[string]*Project
	if params.IncludeProjects {
		projects = cat.Projects
	}
	maps.Copy(hold, RequirementHoldSet(hideout, projects))

	var res OptimizeResult
	for _, si := range stash {
		item, ok := cat.Items[si.ItemID]
		if !ok {
			continue
		}
		if hold[si.ItemID] {
			res.Hold = append(res.Hold, newRecommendation(si, item, cat.Recycle, ActionHold))
			continue
		}

		sell := item.Value * si.Quantity
		rcl := cat.Recycle[si.ItemID] * si.Quantity
		diff := sell - rcl
		if diff < 0 {
			diff = -diff
		}
		if diff < params.MinProfitThreshold {
			continue
		}

		if rcl > sell {
			res.Recycle = append(res.Recycle, newRecommendation(si, item, cat.Recycle, ActionRecycle))
			res.TotalRecycleValue += rcl
		} else {
			res.Sell = append(res.Sell, newRecommendation(si, item, cat.Recycle, ActionSell))
			res.TotalSellValue += sell
		}
	}

	sortBySellDesc(res.Sell)
	sortByMarginAsc(res.Recycle)
	slices.SortStableFunc(res.Hold, func(a, b Recommendation) int {
		return strings.Compare(a.Name, b.Name)
	})
	res.TotalHoldCount = len(res.Hold)
	return res
}

// ResolveItemByName finds a catalog item by English name, case-insensitive.
// An exact match wins; otherwise the shortest name containing the query,
// ties broken by ID. Returns nil when nothing matches.
func ResolveItemByName(query string, items map[string]*Item) *Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	ids := sortedKeys(items)
	for _, id := range ids {
		if strings.ToLower(items[id].Name.En("")) == q {
			return items[id]
		}
	}

	var best *Item
	bestLen := 0
	for _, id := range ids {
		name := items[id].Name.En("")
		if !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		n := len([]rune(name))
		if best == nil || n < bestLen {
			best, bestLen = items[id], n
		}
	}
	return best
}

type recycleEdge struct {
	sourceID string
	qty      int
}

// reverseRecycleMap maps a material ID to the items that recycle into it.
func reverseRecycleMap(items map[string]*Item) map[string][]recycleEdge {
	reverse := make(map[string][]recycleEdge)
	for _, id := range sortedKeys(items) {
		for _, matID := range sortedKeys(items[id].RecyclesInto) {
			reverse[matID] = append(reverse[matID], recycleEdge{sourceID: id, qty: items[id].RecyclesInto[matID]})
		}
	}
	return reverse
}

// FindRecycleSources resolves query to a catalog item and returns the
// stash items that yield it when recycled, directly or transitively. The
// recycle graph is walked breadth-first from the target, so each source is
// reported with its shortest chain. Results are sorted by total yield,
// largest first. The returned item is nil when the query matches nothing.
func FindRecycleSources(query string, stash []StashItem, items map[string]*Item) (*Item, []RecycleSource) {
	target := ResolveItemByName(query, items)
	if target == nil {
		return nil, nil
	}
	targetName := target.Name.En(target.ID)
	reverse := reverseRecycleMap(items)

	type found struct {
		yield int
		chain []string
	}
	sources := make(map[string]found)
	visited := map[string]bool{target.ID: true}

	type step struct {
		id    string
		yield int
		chain []string
	}
	queue := []step{{id: target.ID, yield: 1, chain: []string{targetName}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range reverse[cur.id] {
			src, ok := items[e.sourceID]
			if visited[e.sourceID] || !ok {
				continue
			}
			visited[e.sourceID] = true
			chain := append([]string{src.Name.En(e.sourceID)}, cur.chain...)
			next := step{id: e.sourceID, yield: e.qty * cur.yield, chain: chain}
			sources[e.sourceID] = found{yield: next.yield, chain: chain}
			queue = append(queue, next)
		}
	}

	// Stacks of one item are summed.
	index := make(map[string]int)
	var results []RecycleSource
	for _, si := range stash {
		f, ok := sources[si.ItemID]
		if !ok {
			continue
		}
		if i, ok := index[si.ItemID]; ok {
			results[i].Quantity += si.Quantity
			results[i].TotalYield = f.yield * results[i].Quantity
			continue
		}
		index[si.ItemID] = len(results)
		results = append(results, RecycleSource{
			ItemID:       si.ItemID,
			Name:         items[si.ItemID].Name.En(si.Name),
			Quantity:     si.Quantity,
			YieldPerUnit: f.yield,
			TotalYield:   f.yield * si.Quantity,
			Depth:        len(f.chain) - 1,
			Chain:        f.chain,
		})
	}
	slices.SortStableFunc(results, func(a, b RecycleSource) int {
		return cmp.Compare(b.TotalYield, a.TotalYield)
	})
	return target, results
}

func sortBySellDesc(recs []Recommendation) {
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return cmp.Compare(b.SellValue, a.SellValue)
	})
}

func sortByMarginAsc(recs []Recommendation) {
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return cmp.Compare(a.Margin, b.Margin)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
