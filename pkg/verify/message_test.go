package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageAggregator_DedupKeepsMoreSevere(t *testing.T) {
	agg := NewMessageAggregator()
	pos := Position{File: "f.go", Line: 10, Column: 2}

	agg.Add(AnalysisMessage{Kind: KindCannotConfirm, Text: "unknown", Pos: pos})
	agg.Add(AnalysisMessage{Kind: KindPostconditionFail, Text: "refuted", Pos: pos})

	msgs := agg.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, KindPostconditionFail, msgs[0].Kind)
}

func TestMessageAggregator_TieBreakPrefersUsableRepr(t *testing.T) {
	agg := NewMessageAggregator()
	pos := Position{File: "f.go", Line: 1, Column: 1}

	agg.Add(AnalysisMessage{Kind: KindPostconditionFail, Text: "no repr", Pos: pos, HasRepr: false})
	agg.Add(AnalysisMessage{Kind: KindPostconditionFail, Text: "has repr", Pos: pos, HasRepr: true})

	msgs := agg.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].HasRepr)
}

func TestMessageAggregator_SortsByPosition(t *testing.T) {
	agg := NewMessageAggregator()
	agg.Add(AnalysisMessage{Pos: Position{File: "b.go", Line: 1, Column: 1}, Text: "b"})
	agg.Add(AnalysisMessage{Pos: Position{File: "a.go", Line: 5, Column: 1}, Text: "a-later"})
	agg.Add(AnalysisMessage{Pos: Position{File: "a.go", Line: 1, Column: 1}, Text: "a-first"})

	msgs := agg.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "a-first", msgs[0].Text)
	assert.Equal(t, "a-later", msgs[1].Text)
	assert.Equal(t, "b", msgs[2].Text)
}
