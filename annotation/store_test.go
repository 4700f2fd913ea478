package annotation

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := repository.SetupTestDB(t)
	t.Cleanup(func() { repository.CleanupTestDB(t, db) })
	return NewStore(db, memfs.New(), memfs.New(), nil)
}

func pendingImage(t *testing.T, s *Store, ref string, shapes ...domain.Shape) domain.Image {
	t.Helper()
	file := ref + ".png"
	require.NoError(t, util.WriteFile(s.BlobFS, file, pngBytes(t), 0o644))
	return domain.Image{RefID: ref, Name: file, File: file, Annotations: shapes}
}

func rect(id string) domain.Shape {
	return domain.Shape{ID: id, Kind: domain.KindRectangle, Origin: domain.Point{X: 1, Y: 1}, Width: 10, Height: 10, Color: "#000000"}
}

func exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}

func TestStore_SaveImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveImages(ctx, []domain.Image{pendingImage(t, s, "a", rect("r1"))})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotNil(t, saved[0].ID)
	assert.Equal(t, AssetPrefix+"a", saved[0].URL)
	assert.True(t, exists(s.ImageFS, "a.png"))
	assert.False(t, exists(s.BlobFS, "a.png"))

	loaded, err := s.LoadImages(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "r1", loaded[0].Annotations[0].ID)
}

func TestStore_SaveImagesRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	images := []domain.Image{
		pendingImage(t, s, "a", rect("r1")),
		// shape ids are unique per image
		pendingImage(t, s, "b", rect("r2"), rect("r2")),
	}
	_, err := s.SaveImages(ctx, images)
	require.Error(t, err)

	n, err := s.Images.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	for _, name := range []string{"a.png", "b.png"} {
		assert.True(t, exists(s.BlobFS, name), "blob %s must stay in the upload area", name)
		assert.False(t, exists(s.ImageFS, name), "raster %s must not be left in the images folder", name)
	}

	// the same images save once fixed
	images[1].Annotations = images[1].Annotations[:1]
	saved, err := s.SaveImages(ctx, images)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestStore_SyncImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveImages(ctx, []domain.Image{pendingImage(t, s, "a"), pendingImage(t, s, "b")})
	require.NoError(t, err)

	t.Run("failure keeps the images", func(t *testing.T) {
		keep := saved[1]
		keep.Annotations = []domain.Shape{rect("r1"), rect("r1")}
		_, _, err := s.SyncImages(ctx, []domain.Image{keep})
		require.Error(t, err)

		n, _ := s.Images.Count(ctx)
		assert.EqualValues(t, 2, n)
		assert.True(t, exists(s.ImageFS, "a.png"))
	})

	t.Run("removes what is missing", func(t *testing.T) {
		out, removed, err := s.SyncImages(ctx, saved[1:])
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Equal(t, 1, removed)

		loaded, err := s.LoadImages(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "b", loaded[0].RefID)
		assert.False(t, exists(s.ImageFS, "a.png"))
		assert.True(t, exists(s.ImageFS, "b.png"))
	})
}

func TestStore_ImportImagesIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	images := []domain.Image{
		{Name: "one.png", Annotations: []domain.Shape{rect("r1")}},
		{Name: "two.png", Annotations: []domain.Shape{rect("r2"), rect("r2")}},
	}
	_, err := s.ImportImages(ctx, images)
	require.Error(t, err)

	n, err := s.Images.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
