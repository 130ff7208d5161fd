package writer

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"ai_news_writer/generator"
)

func TestDraftStore_SaveFlushRestore(t *testing.T) {
	dir := t.TempDir()
	store := NewDraftStore(dir, WithDraftDebounce(time.Hour))
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	store.Save(DraftSnapshot{Title: "旧"})
	store.Save(DraftSnapshot{
		Request:   generator.GenerationRequest{Form: generator.FormFields{EventName: "开幕式"}},
		Selection: []generator.SelectedPhotoRef{{ID: "7"}},
		Title:     "新",
		Markdown:  "正文",
	})
	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "nothing written before the debounce fires")

	require.NoError(t, store.Flush())

	raw, err := os.ReadFile(filepath.Join(dir, DraftKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), gjson.GetBytes(raw, "savedAt").Int())

	snap, ok := store.Restore()
	require.True(t, ok)
	assert.Equal(t, "新", snap.Title)
	assert.Equal(t, "开幕式", snap.Request.Form.EventName)
	assert.Equal(t, "7", snap.Selection[0].ID)
	assert.Equal(t, DraftKey, snap.Version)
}

func TestDraftStore_Debounce(t *testing.T) {
	store := NewDraftStore(t.TempDir(), WithDraftDebounce(10*time.Millisecond))
	store.Save(DraftSnapshot{Title: "a"})
	store.Save(DraftSnapshot{Title: "b"})

	require.Eventually(t, func() bool {
		snap, ok := store.Restore()
		return ok && snap.Title == "b"
	}, time.Second, 5*time.Millisecond)
}

func TestDraftStore_RestoreIgnoresBadFiles(t *testing.T) {
	cases := map[string]string{
		"corrupt":       `{"version": "ainews.writer.draft.v1", "title": `,
		"other version": `{"version": "ainews.writer.draft.v0", "title": "x"}`,
		"no version":    `{"title": "x"}`,
		"wrong shape":   `{"version": "ainews.writer.draft.v1", "title": 12}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewDraftStore(t.TempDir())
			require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))
			_, ok := store.Restore()
			assert.False(t, ok)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, ok := NewDraftStore(t.TempDir()).Restore()
		assert.False(t, ok)
	})
}

func TestDraftStore_Clear(t *testing.T) {
	store := NewDraftStore(t.TempDir(), WithDraftDebounce(time.Hour))
	store.Save(DraftSnapshot{Title: "a"})
	require.NoError(t, store.Flush())
	store.Save(DraftSnapshot{Title: "b"})

	require.NoError(t, store.Clear())
	require.NoError(t, store.Flush())
	_, ok := store.Restore()
	assert.False(t, ok)
}

func TestDraftStore_ConcurrentFlushKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewDraftStore(dir, WithDraftDebounce(time.Microsecond))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Save(DraftSnapshot{Title: strconv.Itoa(i)})
			assert.NoError(t, store.Flush())
		}(i)
	}
	wg.Wait()

	store.Save(DraftSnapshot{Title: "最终"})
	require.NoError(t, store.Flush())
	// 让已触发的防抖回调跑完。
	time.Sleep(20 * time.Millisecond)

	snap, ok := store.Restore()
	require.True(t, ok)
	assert.Equal(t, "最终", snap.Title)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
