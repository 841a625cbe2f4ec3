package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubAnalyzer struct {
	desc *domain.ImageDescription
	err  error
}

func (a stubAnalyzer) DescribeImage(context.Context, []byte, string) (*domain.ImageDescription, error) {
	return a.desc, a.err
}

func newGallery(t *testing.T, analyzer domain.ImageAnalyzer) (*GalleryService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	svc := NewGalleryService(env.store, analyzer, time.Second, env.events, quietLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, env
}

func TestGalleryUploadCaptioned(t *testing.T) {
	svc, env := newGallery(t, stubAnalyzer{desc: &domain.ImageDescription{Caption: "Hemorrhagic lymph node", Category: "Gross Pathology"}})
	ctx := context.Background()

	item, err := svc.Upload(ctx, pngHeader, "")
	require.NoError(t, err)
	assert.True(t, item.AIAnalyzed)
	assert.Equal(t, "Hemorrhagic lymph node", item.Caption)
	assert.Equal(t, "Gross Pathology", item.Category)
	assert.Equal(t, "2024-05-25", item.Date)

	mime, data, err := ParseDataURL(item.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngHeader, data)

	assert.Equal(t, []EventType{EventGalleryItemAdded}, env.events.types())
}

func TestGalleryUploadSavesWhenAnalysisFails(t *testing.T) {
	for name, analyzer := range map[string]domain.ImageAnalyzer{
		"error":         stubAnalyzer{err: errors.New("model overloaded")},
		"empty caption": stubAnalyzer{desc: &domain.ImageDescription{}},
		"no analyzer":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newGallery(t, analyzer)
			item, err := svc.Upload(context.Background(), pngHeader, "image/png")
			require.NoError(t, err)
			assert.False(t, item.AIAnalyzed)
			assert.Equal(t, UnanalyzedCaption, item.Caption)
			assert.Equal(t, UnanalyzedCategory, item.Category)
		})
	}
}

func TestGalleryUploadRejectsNonImage(t *testing.T) {
	svc, _ := newGallery(t, nil)
	var ve *domain.ValidationError

	_, err := svc.Upload(context.Background(), []byte("hello, plain text"), "")
	assert.True(t, errors.As(err, &ve))

	_, err = svc.Upload(context.Background(), nil, "image/png")
	assert.True(t, errors.As(err, &ve))
}

func TestGallerySearchAndDelete(t *testing.T) {
	svc, env := newGallery(t, nil)
	ctx := context.Background()
	require.NoError(t, env.store.SaveGallery(ctx, []domain.GalleryItem{
		{ID: "a", Caption: "Liver fluke in bile duct", Category: "Parasitology"},
		{ID: "b", Caption: "Mastitic udder", Category: "Gross Pathology"},
	}))

	found, err := svc.Search(ctx, "PATHOLOGY")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)

	all, err := svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, "a"))
	assert.True(t, errors.Is(svc.Delete(ctx, "a"), domain.ErrNotFound))

	all, err = svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParseDataURLErrors(t *testing.T) {
	for _, url := range []string{"http://x/y.png", "data:image/png,raw", "data:image/png;base64,@@@"} {
		_, _, err := ParseDataURL(url)
		assert.Error(t, err, url)
	}
}
