package arc

import (
	"encoding/json"
	"fmt"
)

// LocalizedString maps a locale code ("en", "de", ...) to text.
type LocalizedString map[string]string

// En returns the English text, or fallback when no English entry exists.
func (l LocalizedString) En(fallback string) string {
	if v, ok := l["en"]; ok {
		return v
	}
	return fallback
}

// ItemQuantity is an item reference with a count.
type ItemQuantity struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// ItemEffect is one stat effect of an item with its localized labels.
type ItemEffect struct {
	Value  string
	Labels LocalizedString
}

// Item is a catalog entry from /api/items.
type Item struct {
	ID            string
	Name          LocalizedString
	Description   LocalizedString
	Type          string
	Rarity        string
	Value         int
	WeightKg      float64
	StackSize     int
	ImageFilename string
	UpdatedAt     string
	Effects       map[string]ItemEffect
	CraftBench    *string
	Recipe        map[string]int
	RecyclesInto  map[string]int
	SalvagesInto  map[string]int
}

// rawItem mirrors the wire shape of an item.
type rawItem struct {
	ID            string                     `json:"id"`
	Name          LocalizedString            `json:"name"`
	Description   LocalizedString            `json:"description"`
	Type          string                     `json:"type"`
	Rarity        string                     `json:"rarity"`
	Value         int                        `json:"value"`
	WeightKg      float64                    `json:"weightKg"`
	StackSize     *int                       `json:"stackSize"`
	ImageFilename string                     `json:"imageFilename"`
	UpdatedAt     string                     `json:"updatedAt"`
	Effects       map[string]json.RawMessage `json:"effects"`
	CraftBench    *string                    `json:"craftBench"`
	Recipe        map[string]int             `json:"recipe"`
	RecyclesInto  map[string]int             `json:"recyclesInto"`
	SalvagesInto  map[string]int             `json:"salvagesInto"`
}

// UnmarshalJSON decodes an item, keeping only object-valued effects.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = Item{
		ID:            raw.ID,
		Name:          orEmpty(raw.Name),
		Description:   orEmpty(raw.Description),
		Type:          raw.Type,
		Rarity:        raw.Rarity,
		Value:         raw.Value,
		WeightKg:      raw.WeightKg,
		StackSize:     1,
		ImageFilename: raw.ImageFilename,
		UpdatedAt:     raw.UpdatedAt,
		Effects:       make(map[string]ItemEffect),
		CraftBench:    raw.CraftBench,
		Recipe:        orEmptyCounts(raw.Recipe),
		RecyclesInto:  orEmptyCounts(raw.RecyclesInto),
		SalvagesInto:  orEmptyCounts(raw.SalvagesInto),
	}
	if raw.StackSize != nil {
		it.StackSize = *raw.StackSize
	}
	for key, msg := range raw.Effects {
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil || obj == nil {
			continue
		}
		eff := ItemEffect{Labels: LocalizedString{}}
		for k, v := range obj {
			if k == "value" {
				eff.Value = scalarString(v)
				continue
			}
			if s, ok := v.(string); ok {
				eff.Labels[k] = s
			}
		}
		it.Effects[key] = eff
	}
	return nil
}

// Quest is a catalog entry from /api/quests.
type Quest struct {
	ID                 string            `json:"id"`
	Name               LocalizedString   `json:"name"`
	Description        LocalizedString   `json:"description"`
	Trader             string            `json:"trader"`
	Objectives         []LocalizedString `json:"objectives"`
	RewardItemIDs      []ItemQuantity    `json:"rewardItemIds"`
	XP                 int               `json:"xp"`
	PreviousQuestIDs   []string          `json:"previousQuestIds"`
	NextQuestIDs       []string          `json:"nextQuestIds"`
	UpdatedAt          string            `json:"updatedAt"`
	Slug               string            `json:"slug"`
	Map                []string          `json:"map"`
	ObjectivesOneRound bool              `json:"objectivesOneRound"`
	VideoURL           *string           `json:"videoUrl"`
	OtherRequirements  []string          `json:"otherRequirements"`
	GrantedItemIDs     []ItemQuantity    `json:"grantedItemIds"`
}

// HideoutLevel lists the items needed to reach a module level.
type HideoutLevel struct {
	Level              int            `json:"level"`
	RequirementItemIDs []ItemQuantity `json:"requirementItemIds"`
}

// HideoutModule is an upgradeable hideout station from /api/hideout.
type HideoutModule struct {
	ID       string          `json:"id"`
	Name     LocalizedString `json:"name"`
	MaxLevel int             `json:"maxLevel"`
	Levels   []HideoutLevel  `json:"levels"`
}

// ProjectPhase lists the items one project phase consumes.
type ProjectPhase struct {
	Name               LocalizedString `json:"name"`
	Phase              int             `json:"phase"`
	RequirementItemIDs []ItemQuantity  `json:"requirementItemIds"`
}

// Project is a seasonal project from /api/projects.
type Project struct {
	ID          string          `json:"id"`
	Disabled    bool            `json:"disabled"`
	Name        LocalizedString `json:"name"`
	Description LocalizedString `json:"description"`
	Phases      []ProjectPhase  `json:"phases"`
}

// StashItem is one stack in the user's stash.
type StashItem struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	SlotIndex int    `json:"slotIndex"`
}

// StashCurrencies holds the user's balances.
type StashCurrencies struct {
	Credits      int `json:"credits"`
	Cred         int `json:"cred"`
	RaiderTokens int `json:"raiderTokens"`
	XP           int `json:"xp"`
}

// StashSlots reports stash capacity.
type StashSlots struct {
	Used int `json:"used"`
	Max  int `json:"max"`
}

// Pagination describes one page of a paged response.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// StashData is the data envelope of /api/v2/user/stash.
type StashData struct {
	Items      []StashItem     `json:"items"`
	Currencies StashCurrencies `json:"currencies"`
	Slots      StashSlots      `json:"slots"`
	Pagination Pagination      `json:"pagination"`
	SyncedAt   string          `json:"syncedAt"`
}

// UserProfile is the data envelope of /api/v2/user/profile.
type UserProfile struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	PlayerLevel int    `json:"playerLevel"`
	MemberSince string `json:"memberSince"`
}

// Meta accompanies every authenticated response.
type Meta struct {
	RequestID string `json:"requestId"`
}

// Recommendation actions.
const (
	ActionSell    = "sell"
	ActionRecycle = "recycle"
	ActionHold    = "hold"
)

// OptimizeParams tunes AnalyzeOptimize.
type OptimizeParams struct {
	QuestAware         bool
	MinProfitThreshold int
	IncludeHideout     bool
	IncludeProjects    bool
}

// DefaultOptimizeParams returns the quest-aware defaults.
func DefaultOptimizeParams() OptimizeParams {
	return OptimizeParams{QuestAware: true}
}

// Recommendation is the verdict for one stash stack. Values are totals for
// the whole stack; Margin is SellValue - RecycleValue.
type Recommendation struct {
	ItemID       string
	Name         string
	Quantity     int
	SellValue    int
	RecycleValue int
	Margin       int
	Action       string
}

// OptimizeResult groups recommendations by action.
type OptimizeResult struct {
	Sell              []Recommendation
	Recycle           []Recommendation
	Hold              []Recommendation
	TotalSellValue    int
	TotalRecycleValue int
	TotalHoldCount    int
}

// RecycleSource is a stash item that yields the searched material when
// recycled, directly or through intermediate materials.
type RecycleSource struct {
	ItemID       string
	Name         string
	Quantity     int
	YieldPerUnit int
	TotalYield   int
	Depth        int
	Chain        []string // item names from this source to the target
}

func orEmpty(l LocalizedString) LocalizedString {
	if l == nil {
		return LocalizedString{}
	}
	return l
}

func orEmptyCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
