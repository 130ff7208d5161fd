package writer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_news_writer/generator"
)

func TestSelectionStore_AddNormalizesAndDedupes(t *testing.T) {
	s := NewSelectionStore(nil)

	require.NoError(t, s.Add(generator.SelectedPhotoRef{ID: " 1 ", URL: "https://cdn/1.jpg", Description: " 合影 "}))
	require.NoError(t, s.Add(generator.SelectedPhotoRef{URL: "https://cdn/2.jpg"}))
	require.NoError(t, s.Add(generator.SelectedPhotoRef{ID: "1", URL: "https://cdn/other.jpg"}))
	assert.ErrorIs(t, s.Add(generator.SelectedPhotoRef{}), ErrInvalidPhoto)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, generator.SelectedPhotoRef{
		ID: "1", URL: "https://cdn/1.jpg", ThumbURL: "https://cdn/1.jpg", Description: "合影",
	}, all[0])
	assert.Equal(t, "https://cdn/2.jpg", all[1].ID)
}

func TestSelectionStore_Limit(t *testing.T) {
	s := NewSelectionStore(nil)
	for i := 0; i < MaxSelection; i++ {
		require.NoError(t, s.Add(generator.SelectedPhotoRef{ID: fmt.Sprint(i)}))
	}
	assert.ErrorIs(t, s.Add(generator.SelectedPhotoRef{ID: "extra"}), ErrSelectionFull)
	assert.NoError(t, s.Add(generator.SelectedPhotoRef{ID: "0"}), "re-adding a selected photo is fine when full")
	assert.Equal(t, MaxSelection, s.Len())
}

func TestSelectionStore_Subscribe(t *testing.T) {
	s := NewSelectionStore(nil, generator.SelectedPhotoRef{ID: "a"})

	var seen [][]string
	unsub := s.Subscribe(func(ps []generator.SelectedPhotoRef) {
		ids := []string{}
		for _, p := range ps {
			ids = append(ids, p.ID)
		}
		seen = append(seen, ids)
	})
	s.Subscribe(func([]generator.SelectedPhotoRef) { panic("bad listener") })

	require.NoError(t, s.Add(generator.SelectedPhotoRef{ID: "b"}))
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("missing"))
	unsub()
	s.Clear()

	assert.Equal(t, [][]string{{"a"}, {"a", "b"}, {"b"}}, seen)
	assert.Zero(t, s.Len())
}

func TestSelectionStore_AllIsACopy(t *testing.T) {
	s := NewSelectionStore(nil, generator.SelectedPhotoRef{ID: "a", Tags: []string{"x"}})
	all := s.All()
	all[0].Tags[0] = "changed"
	all[0].ID = "b"

	assert.Equal(t, "a", s.All()[0].ID)
	assert.Equal(t, []string{"x"}, s.All()[0].Tags)
}
