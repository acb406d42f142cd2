package quest

import (
	"context"
	"fmt"

	"questloom/internal/generator"
	"questloom/internal/narrative"
)

// MockGenerator is a func-field generator double. With no GenerateFunc it
// returns a well-formed turn with a per-call narration so repetition
// scoring stays quiet.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, sc *generator.StructuredContext, opts generator.Options) (*generator.StructuredTurn, error)
	Calls        []*generator.StructuredContext
}

func (m *MockGenerator) Generate(ctx context.Context, sc *generator.StructuredContext, opts generator.Options) (*generator.StructuredTurn, error) {
	m.Calls = append(m.Calls, sc)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, sc, opts)
	}
	return wellFormedTurn(len(m.Calls)), nil
}

// wellFormedTurn builds a turn that passes every post-flight check.
func wellFormedTurn(n int) *generator.StructuredTurn {
	return &generator.StructuredTurn{
		Narration: fmt.Sprintf(
			"You press deeper along the quay, counting %d bells since nightfall. Rope creaks somewhere above your head.", n),
		Progress: &generator.Progress{CurrentEncounter: n},
		SuggestedActions: []string{
			"Follow the sound upward",
			"Keep to the shadows",
		},
	}
}

// MockEncounterSource is a func-field encounter double with benign defaults.
type MockEncounterSource struct {
	NextTypeFunc    func(s *narrative.QuestState) EncounterType
	MonsterFunc     func(s *narrative.QuestState) Monster
	BossMonsterFunc func(s *narrative.QuestState) Monster
	NPCNameFunc     func(s *narrative.QuestState) string

	NextTypeCalls    int
	MonsterCalls     int
	BossMonsterCalls int
	NPCNameCalls     int
}

func (m *MockEncounterSource) NextType(s *narrative.QuestState) EncounterType {
	m.NextTypeCalls++
	if m.NextTypeFunc != nil {
		return m.NextTypeFunc(s)
	}
	return EncounterExploration
}

func (m *MockEncounterSource) Monster(s *narrative.QuestState) Monster {
	m.MonsterCalls++
	if m.MonsterFunc != nil {
		return m.MonsterFunc(s)
	}
	return Monster{Name: "dock rat swarm", Description: "too many eyes in the dark"}
}

func (m *MockEncounterSource) BossMonster(s *narrative.QuestState) Monster {
	m.BossMonsterCalls++
	if m.BossMonsterFunc != nil {
		return m.BossMonsterFunc(s)
	}
	return Monster{Name: "the Harbormaster", Description: "what the tide left in charge", Boss: true}
}

func (m *MockEncounterSource) NPCName(s *narrative.QuestState) string {
	m.NPCNameCalls++
	if m.NPCNameFunc != nil {
		return m.NPCNameFunc(s)
	}
	return "Sela"
}

func fixedType(enc EncounterType) func(*narrative.QuestState) EncounterType {
	return func(*narrative.QuestState) EncounterType { return enc }
}
