package retrieval

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

func newMockStore(t *testing.T, dims int) (*LocalStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLocalStore(db, fakeEmbedder{dims: dims}, dims, 3, loggy.NewNoopLogger()), mock
}

func TestLocalStoreAdd(t *testing.T) {
	store, mock := newMockStore(t, 2)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (id,source,content,metadata,created_at) VALUES (?,?,?,?,?)")).
		WithArgs("doc-1", "a.md", "hello", `{"lang":"Markdown"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_vectors (document_id,embedding) VALUES (?,?)")).
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(sqlmock.AnyArg(), "", "world", "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_vectors")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	ids, err := store.Add(context.Background(), []Document{
		{ID: "doc-1", Source: "a.md", Content: "hello", Metadata: map[string]any{"lang": "Markdown"}},
		{Content: "world"},
	})

	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "doc-1", ids[0])
	assert.Regexp(t, `^doc-`, ids[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStoreAddRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t, 2)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.Add(context.Background(), []Document{{ID: "doc-1", Content: "hello"}})

	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStoreDimensionMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLocalStore(db, fakeEmbedder{dims: 4}, 2, 3, loggy.NewNoopLogger())

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = store.Add(context.Background(), []Document{{Content: "x"}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Retrieve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStoreRetrieve(t *testing.T) {
	store, mock := newMockStore(t, 2)

	rows := sqlmock.NewRows([]string{"id", "source", "content", "metadata", "distance"}).
		AddRow("doc-2", "b.md", "closest", `{"lang":"Markdown"}`, 0.05).
		AddRow("doc-1", "a.md", "further", `{}`, 0.3)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT d.id, d.source, d.content, d.metadata, v.distance FROM "+
			"(SELECT document_id, distance FROM document_vectors WHERE embedding MATCH ? AND k = ?) AS v "+
			"JOIN documents d ON d.id = v.document_id ORDER BY v.distance")).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(rows)

	docs, err := store.Retrieve(context.Background(), "query")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-2", docs[0].ID)
	assert.Equal(t, "b.md", docs[0].Source)
	assert.Equal(t, "Markdown", docs[0].Metadata["lang"])
	assert.Equal(t, 0.05, docs[0].Metadata["distance"])
	assert.Equal(t, 0.3, docs[1].Metadata["distance"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStoreEmbedderError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLocalStore(db, fakeEmbedder{err: errors.New("quota")}, 0, 0, loggy.NewNoopLogger())

	_, err = store.Retrieve(context.Background(), "q")
	assert.ErrorContains(t, err, "quota")

	_, err = store.Add(context.Background(), []Document{{Content: "x"}})
	assert.ErrorContains(t, err, "quota")
}
