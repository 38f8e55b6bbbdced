package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/corpus-agent/internal/chunker"
	"github.com/bull/corpus-agent/internal/llm"
	"github.com/bull/corpus-agent/internal/metadata"
	"github.com/bull/corpus-agent/internal/source"
	"github.com/bull/corpus-agent/internal/storage"
)

type fakeSource struct {
	docs     map[string]*source.Document
	fetchErr map[string]error
}

func (f *fakeSource) List(context.Context) ([]string, error) {
	var paths []string
	for path := range f.docs {
		paths = append(paths, path)
	}
	for path := range f.fetchErr {
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeSource) Fetch(_ context.Context, path string) (*source.Document, error) {
	if err, ok := f.fetchErr[path]; ok {
		return nil, err
	}
	doc, ok := f.docs[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return doc, nil
}

type fakeEmbedder struct {
	textReply string
	embedErr  error
}

func (f *fakeEmbedder) GenerateText(context.Context, string, []llm.Message) (string, error) {
	return f.textReply, nil
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbeddingDimension() int { return 4 }

type fakeIndex struct {
	added  []storage.Chunk
	addErr error
}

func (f *fakeIndex) Add(_ context.Context, chunks []storage.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	return nil
}

func newTestPipeline(t *testing.T, src source.Source, client llm.Client, gen *metadata.Generator, ix Index) *Pipeline {
	t.Helper()
	splitter, err := chunker.NewSplitter(200, 40)
	require.NoError(t, err)
	return NewPipeline(src, splitter, client, gen, ix, nil)
}

func TestPipeline_Run(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"guide.md": {Path: "guide.md", Pages: []source.Page{
			{Title: "Guide", Text: "# Guide\n\nShort body."},
		}},
	}}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	result, err := p.Run(context.Background(), Options{Category: "Docs", Tags: []string{"Guide"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Empty(t, result.FailedDocs)
	require.Equal(t, result.TotalChunks, len(ix.added))
	require.NotEmpty(t, ix.added)

	chunk := ix.added[0]
	assert.Equal(t, storage.ChunkID("guide.md", 0), chunk.ID)
	assert.Equal(t, "guide.md", chunk.SourceID)
	assert.Equal(t, 0, chunk.Sequence)
	assert.Equal(t, storage.HashText(chunk.Text), chunk.ContentHash)
	assert.Equal(t, "docs", chunk.Category)
	assert.Equal(t, []string{"guide"}, chunk.Tags)
	assert.Len(t, chunk.Embedding, 4)
	assert.False(t, chunk.CreatedAt.IsZero())
}

func TestPipeline_Run_FailedDocsAreSkipped(t *testing.T) {
	src := &fakeSource{
		docs: map[string]*source.Document{
			"good.md": {Path: "good.md", Pages: []source.Page{{Text: "Fine content."}}},
		},
		fetchErr: map[string]error{
			"bad.md": errors.New("corrupt file"),
		},
	}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "bad.md", result.FailedDocs[0].Path)
	assert.Contains(t, result.FailedDocs[0].Reason, "corrupt file")
}

func TestPipeline_Run_EmbeddingFailureRecorded(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"doc.md": {Path: "doc.md", Pages: []source.Page{{Text: "Some text."}}},
	}}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{embedErr: llm.ErrUnavailable}, nil, ix)
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Zero(t, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Empty(t, ix.added)
}

func TestPipeline_Run_EmptyDocumentSkipped(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"empty.md": {Path: "empty.md"},
	}}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Zero(t, result.TotalChunks)
	assert.Empty(t, ix.added)
}

func TestPipeline_Run_AutoTag(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"install.md": {Path: "install.md", Pages: []source.Page{{Text: "How to install."}}},
	}}
	ix := &fakeIndex{}
	client := &fakeEmbedder{textReply: `{"category": "setup", "tags": ["install"]}`}
	gen := metadata.NewGenerator(client, 0, nil)

	p := newTestPipeline(t, src, client, gen, ix)
	result, err := p.Run(context.Background(), Options{AutoTag: true, Category: "ignored"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulDocs)
	require.NotEmpty(t, ix.added)
	assert.Equal(t, "setup", ix.added[0].Category)
	assert.Equal(t, []string{"install"}, ix.added[0].Tags)
}

func TestPipeline_Run_PerPageKeepsTitles(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"guide.md": {Path: "guide.md", Pages: []source.Page{
			{Title: "Guide > Setup", Text: "Setup steps."},
			{Title: "Guide > Usage", Text: "Usage notes."},
		}},
	}}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	_, err := p.Run(context.Background(), Options{PerPage: true})
	require.NoError(t, err)

	require.Len(t, ix.added, 2)
	assert.True(t, strings.HasPrefix(ix.added[0].Text, "Guide > Setup"))
	assert.True(t, strings.HasPrefix(ix.added[1].Text, "Guide > Usage"))
	assert.Equal(t, 0, ix.added[0].Sequence)
	assert.Equal(t, 1, ix.added[1].Sequence)
}

type versionedSource struct {
	fakeSource
	sha    string
	shaErr error
}

func (v *versionedSource) LatestCommitSHA(context.Context) (string, error) {
	return v.sha, v.shaErr
}

func TestPipeline_Run_RecordsSourceVersion(t *testing.T) {
	src := &versionedSource{
		fakeSource: fakeSource{docs: map[string]*source.Document{
			"doc.md": {Path: "doc.md", Pages: []source.Page{{Text: "Some text."}}},
		}},
		sha: "abc123",
	}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "abc123", result.CommitSHA)
	assert.Equal(t, 1, result.SuccessfulDocs)
}

func TestPipeline_Run_VersionProbeFailureDoesNotAbort(t *testing.T) {
	src := &versionedSource{
		fakeSource: fakeSource{docs: map[string]*source.Document{
			"doc.md": {Path: "doc.md", Pages: []source.Page{{Text: "Some text."}}},
		}},
		shaErr: errors.New("rate limited"),
	}
	ix := &fakeIndex{}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, ix)
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Empty(t, result.CommitSHA)
	assert.Equal(t, 1, result.SuccessfulDocs)
}

func TestPipeline_Run_UnversionedSourceLeavesCommitEmpty(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"doc.md": {Path: "doc.md", Pages: []source.Page{{Text: "Some text."}}},
	}}

	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, &fakeIndex{})
	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Empty(t, result.CommitSHA)
}

func TestPipeline_Run_DeterministicIDsAcrossRuns(t *testing.T) {
	src := &fakeSource{docs: map[string]*source.Document{
		"doc.md": {Path: "doc.md", Pages: []source.Page{{Text: "Stable content."}}},
	}}

	first := &fakeIndex{}
	p := newTestPipeline(t, src, &fakeEmbedder{}, nil, first)
	_, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	second := &fakeIndex{}
	p = newTestPipeline(t, src, &fakeEmbedder{}, nil, second)
	_, err = p.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.added), len(second.added))
	for i := range first.added {
		assert.Equal(t, first.added[i].ID, second.added[i].ID)
	}
}
