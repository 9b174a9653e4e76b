package synclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/models"
)

func mustAction(t *testing.T, name string, data any) Action {
	t.Helper()
	a, err := NewAction(name, data)
	require.NoError(t, err)
	return a
}

func baseDoc() models.ListData {
	doc := models.NewListData()
	doc.DefaultList = songs("d1", "d2")
	doc.LoveList = songs("l1")
	doc.UserList = []models.UserList{
		{ID: "u1", Name: "first", List: songs("a", "b", "c")},
		{ID: "u2", Name: "second", List: songs("x")},
	}
	return doc
}

func TestApplyListDataOverwrite(t *testing.T) {
	repl := models.NewListData()
	repl.DefaultList = songs("only")

	got, err := Apply(baseDoc(), mustAction(t, ActionListDataOverwrite, repl))
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, songIDs(got.DefaultList))
	assert.Empty(t, got.UserList)
}

func TestApplyListCreate(t *testing.T) {
	a := mustAction(t, ActionListCreate, ListCreateData{
		Position: 1,
		Lists:    []models.UserList{{ID: "u3", Name: "new", List: songs("n")}},
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	require.Len(t, got.UserList, 3)
	assert.Equal(t, "u3", got.UserList[1].ID)

	// Повторное применение идемпотентно: список уже существует
	again, err := Apply(got, a)
	require.NoError(t, err)
	assert.Len(t, again.UserList, 3)
}

func TestApplyListRemove(t *testing.T) {
	a := mustAction(t, ActionListRemove, ListRemoveData{IDs: []string{"u1", "missing"}})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	require.Len(t, got.UserList, 1)
	assert.Equal(t, "u2", got.UserList[0].ID)

	// Повторное удаление безопасно
	again, err := Apply(got, a)
	require.NoError(t, err)
	assert.Len(t, again.UserList, 1)
}

func TestApplyListUpdate(t *testing.T) {
	a := mustAction(t, ActionListUpdate, ListUpdateData{
		Lists: []ListInfo{{ID: "u2", Name: "renamed"}, {ID: "nope", Name: "ignored"}},
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.UserList[1].Name)
	assert.Equal(t, "first", got.UserList[0].Name)
}

func TestApplyListUpdatePosition(t *testing.T) {
	// Позиция трактуется после изъятия перемещаемых списков
	a := mustAction(t, ActionListUpdatePosition, ListUpdatePositionData{
		Position: 0,
		IDs:      []string{"u2"},
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, "u2", got.UserList[0].ID)
	assert.Equal(t, "u1", got.UserList[1].ID)
}

func TestApplyMusicAdd(t *testing.T) {
	a := mustAction(t, ActionMusicAdd, MusicAddData{
		ListID:   "u1",
		Location: config.AddMusicLocationBottom,
		Songs:    songs("c", "d"),
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, songIDs(got.UserList[0].List))

	// Идемпотентность: членство пересчитывается по множеству id
	again, err := Apply(got, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, songIDs(again.UserList[0].List))
}

func TestApplyMusicAddBuiltinLists(t *testing.T) {
	got, err := Apply(baseDoc(), mustAction(t, ActionMusicAdd, MusicAddData{
		ListID:   ListIDLove,
		Location: config.AddMusicLocationBottom,
		Songs:    songs("l2"),
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, songIDs(got.LoveList))

	got, err = Apply(got, mustAction(t, ActionMusicAdd, MusicAddData{
		ListID: ListIDDefault,
		Songs:  songs("d0"),
	}))
	require.NoError(t, err)
	// Без явной позиции вставка идет в начало
	assert.Equal(t, []string{"d0", "d1", "d2"}, songIDs(got.DefaultList))
}

func TestApplyMusicMove(t *testing.T) {
	a := mustAction(t, ActionMusicMove, MusicMoveData{
		FromListID: "u1",
		ToListID:   "u2",
		Location:   config.AddMusicLocationBottom,
		Songs:      songs("b"),
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, songIDs(got.UserList[0].List))
	assert.Equal(t, []string{"x", "b"}, songIDs(got.UserList[1].List))

	// Повтор безопасен: песни уже перемещены
	again, err := Apply(got, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, songIDs(again.UserList[0].List))
	assert.Equal(t, []string{"x", "b"}, songIDs(again.UserList[1].List))
}

func TestApplyMusicRemove(t *testing.T) {
	a := mustAction(t, ActionMusicRemove, MusicRemoveData{ListID: "u1", IDs: []string{"b", "zz"}})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, songIDs(got.UserList[0].List))

	again, err := Apply(got, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, songIDs(again.UserList[0].List))
}

func TestApplyMusicUpdate(t *testing.T) {
	updated := models.NewSong("b", []byte(`{"id":"b","name":"новое название"}`))
	a := mustAction(t, ActionMusicUpdate, MusicUpdateData{ListID: "u1", Songs: []models.Song{updated}})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	// Порядок не изменился, запись заменена на месте
	assert.Equal(t, []string{"a", "b", "c"}, songIDs(got.UserList[0].List))

	raw, err := got.UserList[0].List[1].MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "новое название")
}

func TestApplyMusicUpdatePosition(t *testing.T) {
	// Позиция считается по списку после изъятия перемещаемых песен:
	// [a b c] при переносе a на позицию 1 дает [b a c], не [b c a]
	a := mustAction(t, ActionMusicUpdatePosition, MusicUpdatePositionData{
		ListID:   "u1",
		Position: 1,
		Songs:    songs("a"),
	})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, songIDs(got.UserList[0].List))
}

func TestApplyMusicOverwrite(t *testing.T) {
	a := mustAction(t, ActionMusicOverwrite, MusicOverwriteData{ListID: "u2", Songs: songs("q", "w")})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"q", "w"}, songIDs(got.UserList[1].List))
}

func TestApplyMusicClear(t *testing.T) {
	a := mustAction(t, ActionMusicClear, MusicClearData{ListIDs: []string{ListIDDefault, "u1"}})

	got, err := Apply(baseDoc(), a)
	require.NoError(t, err)
	assert.Empty(t, got.DefaultList)
	assert.Empty(t, got.UserList[0].List)
	assert.Equal(t, []string{"l1"}, songIDs(got.LoveList))
}

func TestApplyErrors(t *testing.T) {
	_, err := Apply(baseDoc(), Action{Action: "unknown_action", Data: []byte(`{}`)})
	require.Error(t, err)

	_, err = Apply(baseDoc(), Action{Action: ActionMusicAdd, Data: []byte(`not json`)})
	require.Error(t, err)

	_, err = Apply(baseDoc(), mustAction(t, ActionMusicAdd, MusicAddData{ListID: "missing", Songs: songs("a")}))
	require.Error(t, err)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	doc := baseDoc()
	_, err := Apply(doc, mustAction(t, ActionMusicRemove, MusicRemoveData{ListID: "u1", IDs: []string{"a"}}))
	require.NoError(t, err)

	// Чистая функция: исходный документ не тронут
	assert.Equal(t, []string{"a", "b", "c"}, songIDs(doc.UserList[0].List))
}
