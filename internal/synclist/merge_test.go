package synclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/models"
)

func songs(ids ...string) []models.Song {
	out := make([]models.Song, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewSong(id, nil))
	}
	return out
}

func songIDs(list []models.Song) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID())
	}
	return out
}

func TestMergeSongs(t *testing.T) {
	tests := []struct {
		name     string
		dst      []string
		src      []string
		location string
		want     []string
	}{
		{
			name:     "insert at bottom",
			dst:      []string{"1", "2"},
			src:      []string{"2", "3"},
			location: config.AddMusicLocationBottom,
			want:     []string{"1", "2", "3"},
		},
		{
			name:     "insert at top",
			dst:      []string{"1", "2"},
			src:      []string{"2", "3"},
			location: config.AddMusicLocationTop,
			want:     []string{"3", "1", "2"},
		},
		{
			name:     "no new songs keeps dst",
			dst:      []string{"1", "2", "3"},
			src:      []string{"2", "1"},
			location: config.AddMusicLocationBottom,
			want:     []string{"1", "2", "3"},
		},
		{
			name:     "empty dst takes src order",
			dst:      nil,
			src:      []string{"a", "b"},
			location: config.AddMusicLocationBottom,
			want:     []string{"a", "b"},
		},
		{
			name:     "merge never deletes",
			dst:      []string{"only-local"},
			src:      nil,
			location: config.AddMusicLocationBottom,
			want:     []string{"only-local"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSongs(songs(tt.dst...), songs(tt.src...), tt.location)
			assert.Equal(t, tt.want, songIDs(got))
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	local := models.NewListData()
	local.DefaultList = songs("1", "2")
	local.UserList = []models.UserList{{ID: "u1", Name: "mix", List: songs("x")}}

	remote := models.NewListData()
	remote.DefaultList = songs("2", "3")
	remote.UserList = []models.UserList{{ID: "u1", Name: "mix", List: songs("y")}}

	// Повторный merge с неизменными данными пира ничего не меняет:
	// хеш после второго раунда равен хешу после первого
	round1 := Merge(local, remote, config.AddMusicLocationBottom)
	round2 := Merge(round1, remote, config.AddMusicLocationBottom)

	h1, err := round1.MD5()
	require.NoError(t, err)
	h2, err := round2.MD5()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestMergeUserLists(t *testing.T) {
	local := models.NewListData()
	local.UserList = []models.UserList{
		{ID: "both", Name: "общий", List: songs("1")},
		{ID: "local-only", Name: "мой", List: songs("2")},
	}

	remote := models.NewListData()
	remote.UserList = []models.UserList{
		{ID: "both", Name: "общий", List: songs("3")},
		{ID: "remote-only", Name: "чужой", List: songs("4")},
	}

	got := Merge(local, remote, config.AddMusicLocationBottom)

	require.Len(t, got.UserList, 3)
	// Общий плейлист объединен
	assert.Equal(t, "both", got.UserList[0].ID)
	assert.Equal(t, []string{"1", "3"}, songIDs(got.UserList[0].List))
	// Локальный сохранен, позиция не тронута
	assert.Equal(t, "local-only", got.UserList[1].ID)
	// Плейлист только с той стороны добавлен в конец
	assert.Equal(t, "remote-only", got.UserList[2].ID)
}

func TestOverwrite(t *testing.T) {
	local := models.NewListData()
	local.DefaultList = songs("old")
	local.LoveList = songs("kept-love")
	local.UserList = []models.UserList{
		{ID: "both", Name: "старое имя", List: songs("old-song")},
		{ID: "local-only", Name: "мой", List: songs("mine")},
	}

	src := models.NewListData()
	src.DefaultList = songs("new")
	src.UserList = []models.UserList{
		{ID: "both", Name: "новое имя", List: songs("new-song")},
		{ID: "src-only", Name: "новый", List: songs("s")},
	}

	got := Overwrite(local, src, false)

	// defaultList и loveList заменены целиком
	assert.Equal(t, []string{"new"}, songIDs(got.DefaultList))
	assert.Empty(t, got.LoveList)

	// Не-full: набор плейлистов не трогается, заменяется
	// только содержимое общих
	require.Len(t, got.UserList, 2)
	assert.Equal(t, "both", got.UserList[0].ID)
	assert.Equal(t, "старое имя", got.UserList[0].Name)
	assert.Equal(t, []string{"new-song"}, songIDs(got.UserList[0].List))
	assert.Equal(t, "local-only", got.UserList[1].ID)
}

func TestOverwriteFull(t *testing.T) {
	local := models.NewListData()
	local.UserList = []models.UserList{
		{ID: "both", Name: "старое имя", List: songs("old")},
		{ID: "local-only", Name: "мой", List: songs("mine")},
	}

	src := models.NewListData()
	src.UserList = []models.UserList{
		{ID: "both", Name: "новое имя", List: songs("new")},
		{ID: "src-only", Name: "новый", List: songs("s")},
	}

	got := Overwrite(local, src, true)

	// Full: набор плейлистов приводится к источнику - создание,
	// переименование и удаление целых списков
	require.Len(t, got.UserList, 2)
	assert.Equal(t, "both", got.UserList[0].ID)
	assert.Equal(t, "новое имя", got.UserList[0].Name)
	assert.Equal(t, "src-only", got.UserList[1].ID)

	h1, err := got.MD5()
	require.NoError(t, err)
	h2, err := src.MD5()
	require.NoError(t, err)
	assert.Equal(t, h2, h1, "full overwrite дает документ источника")
}
