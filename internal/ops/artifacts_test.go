package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/api/apitest"
	"github.com/hpungsan/folio/internal/errors"
)

func TestPrompts(t *testing.T) {
	b := apitest.New(t)
	svc := b.Services()
	ctx := context.Background()

	p, err := SavePrompt(ctx, svc, ArtifactInput{Name: " outline ", Content: "# Outline"})
	require.NoError(t, err)
	assert.Equal(t, "outline", p.Name)

	p, err = SavePrompt(ctx, svc, ArtifactInput{ID: &p.ID, Name: "outline v2", Content: "# Outline 2"})
	require.NoError(t, err)

	got, err := GetPrompt(ctx, svc, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Outline 2", got.PromptContent)

	found, err := SearchPrompts(ctx, svc, "v2")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, DeletePrompt(ctx, svc, p.ID))
	all, err := SearchPrompts(ctx, svc, "")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)
}

func TestSQLQueriesAndDiagrams(t *testing.T) {
	b := apitest.New(t)
	svc := b.Services()
	ctx := context.Background()

	q, err := SaveSQLQuery(ctx, svc, ArtifactInput{Name: "users", Content: "select * from users"})
	require.NoError(t, err)
	gotQ, err := GetSQLQuery(ctx, svc, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "select * from users", gotQ.QueryContent)
	qs, err := SearchSQLQueries(ctx, svc, "use")
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	require.NoError(t, DeleteSQLQuery(ctx, svc, q.ID))

	d, err := SaveSequenceDiagram(ctx, svc, ArtifactInput{Name: "flow", Content: "A->>B: hi"})
	require.NoError(t, err)
	gotD, err := GetSequenceDiagram(ctx, svc, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "A->>B: hi", gotD.SequenceDiagramContent)
	ds, err := SearchSequenceDiagrams(ctx, svc, "")
	require.NoError(t, err)
	assert.Len(t, ds, 1)
	require.NoError(t, DeleteSequenceDiagram(ctx, svc, d.ID))
}

func TestArtifacts_ValidationMakesNoCalls(t *testing.T) {
	b := apitest.New(t)
	svc := b.Services()
	ctx := context.Background()

	_, err := SavePrompt(ctx, svc, ArtifactInput{Name: ""})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = SaveSQLQuery(ctx, svc, ArtifactInput{Name: " "})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	bad := int64(0)
	_, err = SaveSequenceDiagram(ctx, svc, ArtifactInput{ID: &bad, Name: "x"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = GetPrompt(ctx, svc, -1)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	assert.Empty(t, b.Calls())
}
