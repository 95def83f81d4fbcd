package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamb-project/kb-server/internal/model"
)

func newFileFixture(t *testing.T) (*FileService, *fakeFiles, *fakeVectors) {
	t.Helper()
	files := newFakeFiles()
	vectors := newFakeVectors(8)
	return NewFileService(files, vectors), files, vectors
}

func TestFileGet(t *testing.T) {
	svc, files, _ := newFileFixture(t)
	ctx := context.Background()

	file := &model.File{CollectionID: uuid.New(), Status: model.FileStatusCompleted}
	require.NoError(t, files.Create(ctx, file))

	got, err := svc.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileListByCollection(t *testing.T) {
	svc, files, _ := newFileFixture(t)
	ctx := context.Background()
	collID := uuid.New()

	require.NoError(t, files.Create(ctx, &model.File{CollectionID: collID, Status: model.FileStatusCompleted}))
	require.NoError(t, files.Create(ctx, &model.File{CollectionID: collID, Status: model.FileStatusFailed}))
	require.NoError(t, files.Create(ctx, &model.File{CollectionID: uuid.New(), Status: model.FileStatusCompleted}))

	all, total, err := svc.ListByCollection(ctx, collID, "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	failed, total, err := svc.ListByCollection(ctx, collID, model.FileStatusFailed, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, failed, 1)

	_, _, err = svc.ListByCollection(ctx, collID, "exploded", 0, 20)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestForceStatus(t *testing.T) {
	svc, files, _ := newFileFixture(t)
	ctx := context.Background()

	file := &model.File{CollectionID: uuid.New(), Status: model.FileStatusProcessing}
	require.NoError(t, files.Create(ctx, file))

	got, err := svc.ForceStatus(ctx, file.ID, model.FileStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusFailed, got.Status)

	_, err = svc.ForceStatus(ctx, file.ID, "exploded")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ForceStatus(ctx, uuid.New(), model.FileStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForceStatusDeletedRemovesVectors(t *testing.T) {
	svc, files, vectors := newFileFixture(t)
	ctx := context.Background()
	collRef := uuid.New()

	file := &model.File{CollectionID: uuid.New(), Status: model.FileStatusCompleted}
	require.NoError(t, files.Create(ctx, file))
	vectors.docs[collRef] = append(vectors.docs[collRef],
		makeDoc(file.ID, 0), makeDoc(file.ID, 1), makeDoc(uuid.New(), 0))

	got, err := svc.ForceStatus(ctx, file.ID, model.FileStatusDeleted)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusDeleted, got.Status)

	// The file's vectors are gone, other files' vectors stay.
	assert.Len(t, vectors.docs[collRef], 1)
}

func TestForceStatusCompletedReconcilesDocumentCount(t *testing.T) {
	svc, files, vectors := newFileFixture(t)
	ctx := context.Background()
	collRef := uuid.New()

	file := &model.File{
		CollectionID:  uuid.New(),
		Status:        model.FileStatusFailed,
		DocumentCount: 0,
	}
	require.NoError(t, files.Create(ctx, file))
	vectors.docs[collRef] = append(vectors.docs[collRef], makeDoc(file.ID, 0), makeDoc(file.ID, 1))

	got, err := svc.ForceStatus(ctx, file.ID, model.FileStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusCompleted, got.Status)
	assert.Equal(t, 2, got.DocumentCount)

	// The row reflects what is actually queryable.
	row, err := files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.DocumentCount)
	assert.Equal(t, model.FileStatusCompleted, row.Status)
}

func TestFileDelete(t *testing.T) {
	svc, files, vectors := newFileFixture(t)
	ctx := context.Background()
	collRef := uuid.New()

	staged := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(staged, []byte("hello"), 0o644))

	file := &model.File{
		CollectionID: uuid.New(),
		StoredPath:   staged,
		Status:       model.FileStatusCompleted,
	}
	require.NoError(t, files.Create(ctx, file))
	vectors.docs[collRef] = append(vectors.docs[collRef], makeDoc(file.ID, 0))

	require.NoError(t, svc.Delete(ctx, file.ID))

	// Vectors and staged bytes removed; the row stays in `deleted`.
	assert.Empty(t, vectors.docs[collRef])
	_, statErr := os.Stat(staged)
	assert.True(t, os.IsNotExist(statErr))

	row, err := files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusDeleted, row.Status)
}
