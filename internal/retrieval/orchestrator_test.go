package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/corpus-agent/internal/index"
	"github.com/bull/corpus-agent/internal/llm"
)

// mockLLM scripts the three generation roles by recognizing each prompt.
type mockLLM struct {
	validateReply    string
	validateErr      error
	reformulateReply string
	reformulateErr   error
	synthesisReply   string
	synthesisErr     error
	embedErr         error

	validateCalls       int
	reformulateCalls    int
	synthesisCalls      int
	lastSynthesisPrompt string
}

func (m *mockLLM) GenerateText(_ context.Context, prompt string, _ []llm.Message) (string, error) {
	switch {
	case strings.Contains(prompt, "Reply with exactly YES or NO"):
		m.validateCalls++
		return m.validateReply, m.validateErr
	case strings.Contains(prompt, "Rewrite it as a short"):
		m.reformulateCalls++
		return m.reformulateReply, m.reformulateErr
	default:
		m.synthesisCalls++
		m.lastSynthesisPrompt = prompt
		return m.synthesisReply, m.synthesisErr
	}
}

func (m *mockLLM) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockLLM) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockLLM) EmbeddingDimension() int { return 2 }

// mockSearcher serves one canned result set per search, recording queries.
type mockSearcher struct {
	resultSets [][]index.Result
	queries    []string
}

func (m *mockSearcher) HybridSearch(_ context.Context, query string, _ []float32, _ int, _ string) []index.Result {
	call := len(m.queries)
	m.queries = append(m.queries, query)
	if call < len(m.resultSets) {
		return m.resultSets[call]
	}
	return nil
}

func result(id, text string) index.Result {
	return index.Result{ChunkID: id, Text: text, Semantic: true, SemanticScore: 0.9}
}

func TestAnswer_SufficientFirstPass(t *testing.T) {
	searcher := &mockSearcher{resultSets: [][]index.Result{
		{result("c1", "relevant passage")},
	}}
	client := &mockLLM{validateReply: "YES", synthesisReply: "grounded answer"}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "what is the policy?", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)
	assert.Len(t, searcher.queries, 1, "sufficient context must not trigger a second search")
	assert.Equal(t, 0, client.reformulateCalls)
	assert.Contains(t, client.lastSynthesisPrompt, "relevant passage")
}

func TestAnswer_InsufficientTriggersSecondSearchAndMerge(t *testing.T) {
	searcher := &mockSearcher{resultSets: [][]index.Result{
		{
			{ChunkID: "c1", Text: "first variant", Semantic: true, SemanticScore: 0.8},
			result("c2", "second chunk"),
		},
		{
			{ChunkID: "c1", Text: "second-pass variant", Keyword: true, KeywordScore: 3.0},
			result("c3", "third chunk"),
		},
	}}
	client := &mockLLM{
		validateReply:    "NO",
		reformulateReply: "policy retention schedule",
		synthesisReply:   "merged answer",
	}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "what is the policy?", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "merged answer", answer)

	require.Len(t, searcher.queries, 2, "insufficient context must trigger exactly one retry")
	assert.Equal(t, "what is the policy?", searcher.queries[0])
	assert.Equal(t, "policy retention schedule", searcher.queries[1])

	// First-pass variant of c1 wins the merge; synthesis sees it, not the retry's.
	assert.Contains(t, client.lastSynthesisPrompt, "first variant")
	assert.NotContains(t, client.lastSynthesisPrompt, "second-pass variant")
	assert.Contains(t, client.lastSynthesisPrompt, "third chunk")
}

func TestAnswer_IdenticalReformulationSkipsSecondSearch(t *testing.T) {
	searcher := &mockSearcher{}
	client := &mockLLM{reformulateReply: "What Is The Policy?"}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "what is the policy?", "", nil)
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextReply, answer)

	assert.Len(t, searcher.queries, 1, "case-insensitively identical rewrite must not re-search")
	assert.Equal(t, 0, client.validateCalls, "empty results skip the sufficiency call")
	assert.Equal(t, 0, client.synthesisCalls, "empty merged set skips synthesis")
}

func TestAnswer_EmptyMergedSetReturnsFixedReply(t *testing.T) {
	searcher := &mockSearcher{}
	client := &mockLLM{reformulateReply: "different query"}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "anything indexed about X?", "", nil)
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextReply, answer)
	assert.Len(t, searcher.queries, 2)
	assert.Equal(t, 0, client.synthesisCalls)
}

func TestAnswer_ValidatorErrorKeepsFirstPass(t *testing.T) {
	searcher := &mockSearcher{resultSets: [][]index.Result{
		{result("c1", "only passage")},
	}}
	client := &mockLLM{validateErr: errors.New("model offline"), synthesisReply: "answer"}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "question", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Len(t, searcher.queries, 1, "a flaky validator must not trigger a retry")
}

func TestAnswer_EmbeddingFailureDegrades(t *testing.T) {
	searcher := &mockSearcher{}
	client := &mockLLM{embedErr: errors.New("embeddings offline"), reformulateErr: errors.New("offline")}
	o := NewOrchestrator(searcher, client, 0, nil)

	answer, err := o.Answer(context.Background(), "question", "", nil)
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextReply, answer)
	assert.Empty(t, searcher.queries, "failed embedding never reaches the index")
}

func TestAnswer_SynthesisErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{resultSets: [][]index.Result{
		{result("c1", "passage")},
	}}
	client := &mockLLM{validateReply: "YES", synthesisErr: errors.New("model offline")}
	o := NewOrchestrator(searcher, client, 0, nil)

	_, err := o.Answer(context.Background(), "question", "", nil)
	assert.Error(t, err)
}

func TestMergeResults_FirstWins(t *testing.T) {
	first := []index.Result{
		{ChunkID: "a", Text: "a-first"},
		{ChunkID: "b", Text: "b-first"},
	}
	second := []index.Result{
		{ChunkID: "b", Text: "b-second"},
		{ChunkID: "c", Text: "c-second"},
	}

	merged := mergeResults(first, second)
	require.Len(t, merged, 3)
	assert.Equal(t, "a-first", merged[0].Text)
	assert.Equal(t, "b-first", merged[1].Text, "first occurrence wins on collision")
	assert.Equal(t, "c-second", merged[2].Text)
}

func TestSufficient_AffirmativeTokenDetection(t *testing.T) {
	searcher := &mockSearcher{}
	results := []index.Result{result("c1", "passage")}

	cases := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{"yes, the context covers it", true},
		{"NO", false},
		{"Unclear", false},
	}
	for _, tc := range cases {
		client := &mockLLM{validateReply: tc.reply}
		o := NewOrchestrator(searcher, client, 0, nil)
		assert.Equal(t, tc.want, o.sufficient(context.Background(), "q", results), "reply %q", tc.reply)
	}
}
