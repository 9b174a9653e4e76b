package models

import (
	"crypto/md5" //nolint:gosec // проверка wire-хеша
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyListDataMD5(t *testing.T) {
	doc := NewListData()

	hash, err := doc.MD5()
	require.NoError(t, err)

	// Канонический пустой документ
	want := md5.Sum([]byte(`{"defaultList":[],"loveList":[],"userList":[]}`)) //nolint:gosec
	assert.Equal(t, hex.EncodeToString(want[:]), hash)

	// nil-списки нормализуются к тому же хешу
	var zero ListData
	zeroHash, err := zero.MD5()
	require.NoError(t, err)
	assert.Equal(t, hash, zeroHash)
}

func TestSongOpaqueRoundTrip(t *testing.T) {
	// Движок не интерпретирует поля песни кроме id:
	// сериализация обязана вернуть исходные байты без изменений
	raw := `{"id":"mg_123","name":"Song Title","singer":"Artist","interval":"03:45","source":"mg"}`

	var s Song
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, "mg_123", s.ID())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Equal(t, raw, string(out))
}

func TestSongNumericID(t *testing.T) {
	var s Song
	require.NoError(t, json.Unmarshal([]byte(`{"id":12345,"name":"n"}`), &s))
	assert.Equal(t, "12345", s.ID())
}

func TestSongMissingID(t *testing.T) {
	var s Song
	err := json.Unmarshal([]byte(`{"name":"no id"}`), &s)
	require.Error(t, err)
}

func TestListDataClone(t *testing.T) {
	doc := NewListData()
	doc.DefaultList = []Song{NewSong("a", nil)}
	doc.UserList = []UserList{{ID: "l1", Name: "мой список", List: []Song{NewSong("b", nil)}}}

	clone := doc.Clone()

	// Мутация копии не трогает оригинал
	clone.DefaultList = append(clone.DefaultList, NewSong("c", nil))
	clone.UserList[0].List = append(clone.UserList[0].List, NewSong("d", nil))

	assert.Len(t, doc.DefaultList, 1)
	assert.Len(t, doc.UserList[0].List, 1)
	assert.Len(t, clone.DefaultList, 2)
	assert.Len(t, clone.UserList[0].List, 2)
}

func TestListDataMarshalStable(t *testing.T) {
	doc := NewListData()
	doc.LoveList = []Song{NewSong("x", json.RawMessage(`{"id":"x","name":"n"}`))}

	b1, err := doc.Marshal()
	require.NoError(t, err)
	b2, err := doc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestListDataMarshalDoesNotMutate(t *testing.T) {
	doc := ListData{
		UserList: []UserList{{ID: "l1", Name: "мой список"}},
	}

	_, err := doc.Marshal()
	require.NoError(t, err)

	// Хеширование и сериализация - операции чтения: nil-список
	// внутри плейлиста вызывающего остается nil
	assert.Nil(t, doc.DefaultList)
	assert.Nil(t, doc.UserList[0].List)

	_, err = doc.MD5()
	require.NoError(t, err)
	assert.Nil(t, doc.UserList[0].List)
}
