package quest

import (
	"math/rand"
	"sort"
	"strings"

	"questloom/internal/narrative"
)

// EncounterType classifies one story beat.
type EncounterType string

const (
	EncounterCombat      EncounterType = "combat"
	EncounterSocial      EncounterType = "social"
	EncounterTrap        EncounterType = "trap"
	EncounterExploration EncounterType = "exploration"
	EncounterFinal       EncounterType = "final"
)

// Difficulty tunes quest opposition. Boss difficulty on a combat quest
// swaps the generated monster for the pre-built boss.
type Difficulty string

const (
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
	DifficultyBoss   Difficulty = "boss"
)

// Monster is the opposition for a combat encounter.
type Monster struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Boss        bool   `json:"boss,omitempty"`
}

// EncounterSource proposes encounter content. The orchestrator owns when to
// ask and how to coerce the answer; sources only propose.
type EncounterSource interface {
	NextType(s *narrative.QuestState) EncounterType
	Monster(s *narrative.QuestState) Monster
	BossMonster(s *narrative.QuestState) Monster
	NPCName(s *narrative.QuestState) string
}

// trapSpacing is the minimum non-trap encounters required between traps.
const trapSpacing = 3

// enforceVariety coerces a proposed encounter type so consecutive beats do
// not repeat. Final is always respected; the quest's designated final
// encounter skips variety entirely.
func enforceVariety(s *narrative.QuestState, enc EncounterType) EncounterType {
	if enc == EncounterFinal {
		return enc
	}
	if s.CurrentEncounter+1 >= s.TotalEncounters {
		return enc
	}
	switch enc {
	case EncounterCombat:
		if s.LastEncounterType == string(EncounterCombat) {
			return EncounterExploration
		}
	case EncounterSocial:
		if s.LastEncounterType == string(EncounterSocial) {
			return EncounterExploration
		}
	case EncounterTrap:
		if s.LastTrapEncounter >= 0 && s.CurrentEncounter-s.LastTrapEncounter < trapSpacing {
			return EncounterExploration
		}
	}
	return enc
}

// conversationEnders break an active NPC conversation when they appear in
// the player's input.
var conversationEnders = []string{
	"leave", "goodbye", "farewell", "walk away", "move on", "depart", "attack",
}

func conversationEnding(input string) bool {
	lower := strings.ToLower(input)
	for _, phrase := range conversationEnders {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// =============================================================================
// Default table-driven source
// =============================================================================

// TableSource is the default EncounterSource: weighted type selection plus
// fixed monster and NPC tables, driven by a seeded generator so runs are
// reproducible.
type TableSource struct {
	rng *rand.Rand
}

// NewTableSource returns a table source seeded for reproducible selection.
func NewTableSource(seed int64) *TableSource {
	return &TableSource{rng: rand.New(rand.NewSource(seed))}
}

func (t *TableSource) NextType(s *narrative.QuestState) EncounterType {
	if s.CurrentEncounter+1 >= s.TotalEncounters {
		return EncounterFinal
	}
	// Climax leans harder on combat.
	roll := t.rng.Intn(100)
	if s.Stage == narrative.StageClimax {
		switch {
		case roll < 55:
			return EncounterCombat
		case roll < 70:
			return EncounterTrap
		case roll < 85:
			return EncounterSocial
		default:
			return EncounterExploration
		}
	}
	switch {
	case roll < 35:
		return EncounterCombat
	case roll < 55:
		return EncounterSocial
	case roll < 70:
		return EncounterTrap
	default:
		return EncounterExploration
	}
}

var monsterTable = []Monster{
	{Name: "gnarled dire wolf", Description: "ribs showing, eyes rimmed red"},
	{Name: "crypt shade", Description: "a smear of cold dark that hates lantern light"},
	{Name: "rust-armored brigand", Description: "twitchy, scarred, fighting for coin"},
	{Name: "marsh troll", Description: "slow, patient, very hard to discourage"},
	{Name: "temple guardian construct", Description: "stone joints grinding after centuries of stillness"},
}

var bossTable = []Monster{
	{Name: "the Hollow King", Description: "a crowned revenant bound to the quest's heart", Boss: true},
	{Name: "Vargha, matron of wolves", Description: "den-mother of everything you have fought so far", Boss: true},
	{Name: "the Unfinished Colossus", Description: "half-carved, fully awake", Boss: true},
}

var npcTable = []string{
	"Maren the tinker", "Old Josselin", "Brother Edric",
	"Ilsa of the crossroads", "Tam the gravedigger",
}

func (t *TableSource) Monster(_ *narrative.QuestState) Monster {
	return monsterTable[t.rng.Intn(len(monsterTable))]
}

func (t *TableSource) BossMonster(s *narrative.QuestState) Monster {
	// Stable per quest so the boss teased early is the boss fought late.
	idx := 0
	for _, r := range s.QuestID {
		idx = (idx + int(r)) % len(bossTable)
	}
	return bossTable[idx]
}

func (t *TableSource) NPCName(s *narrative.QuestState) string {
	// Prefer someone already met so relationships accumulate.
	if len(s.NPCs) > 0 && t.rng.Intn(2) == 0 {
		names := make([]string, 0, len(s.NPCs))
		for name := range s.NPCs {
			names = append(names, name)
		}
		sort.Strings(names)
		return names[t.rng.Intn(len(names))]
	}
	return npcTable[t.rng.Intn(len(npcTable))]
}
