package models

import (
	"crypto/md5" //nolint:gosec // MD5 требуется протоколом для хеша документа
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Song представляет одну песню в списке.
// Запись непрозрачная: движок синхронизации интерпретирует только id,
// остальные поля (название, исполнитель, источник и т.д.) передаются
// и хранятся как есть, байт в байт.
type Song struct {
	id  string
	raw json.RawMessage
}

// NewSong создает Song из id и исходного JSON-представления.
// Если raw == nil, сериализуется минимальный объект {"id": ...}.
func NewSong(id string, raw json.RawMessage) Song {
	return Song{id: id, raw: raw}
}

// ID возвращает стабильный идентификатор песни
func (s Song) ID() string {
	return s.id
}

// MarshalJSON сериализует песню в ее исходном виде
func (s Song) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(map[string]string{"id": s.id})
}

// UnmarshalJSON сохраняет исходные байты и извлекает id.
// id может быть строкой или числом (некоторые источники используют числовые id)
func (s *Song) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to parse song: %w", err)
	}

	switch v := aux.ID.(type) {
	case string:
		s.id = v
	case float64:
		s.id = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return fmt.Errorf("song id is required")
	default:
		return fmt.Errorf("unsupported song id type %T", v)
	}

	// Сохраняем копию исходных байт (decoder может переиспользовать буфер)
	s.raw = make(json.RawMessage, len(data))
	copy(s.raw, data)
	return nil
}

// UserList представляет пользовательский (кастомный) плейлист
type UserList struct {
	ID   string `json:"id"`   // ID уникальный идентификатор плейлиста
	Name string `json:"name"` // Name отображаемое имя плейлиста
	List []Song `json:"list"` // List песни плейлиста
}

// ListData представляет синхронизируемый документ списков одного аккаунта:
// дефолтный список, избранное и набор пользовательских плейлистов.
// Инвариант: id песни уникален внутри одного списка,
// дублирование между списками допустимо.
type ListData struct {
	DefaultList []Song     `json:"defaultList"` // DefaultList основной список
	LoveList    []Song     `json:"loveList"`    // LoveList избранное
	UserList    []UserList `json:"userList"`    // UserList пользовательские плейлисты
}

// NewListData создает пустой документ с не-nil списками,
// чтобы каноническая сериализация давала [] вместо null
func NewListData() ListData {
	return ListData{
		DefaultList: []Song{},
		LoveList:    []Song{},
		UserList:    []UserList{},
	}
}

// Normalize заменяет nil-списки на пустые.
// Вызывается перед сериализацией и хешированием
func (d *ListData) Normalize() {
	if d.DefaultList == nil {
		d.DefaultList = []Song{}
	}
	if d.LoveList == nil {
		d.LoveList = []Song{}
	}
	if d.UserList == nil {
		d.UserList = []UserList{}
	}
	for i := range d.UserList {
		if d.UserList[i].List == nil {
			d.UserList[i].List = []Song{}
		}
	}
}

// Marshal возвращает каноническую JSON-сериализацию документа.
// Порядок полей фиксирован структурой: defaultList, loveList, userList.
// Документ вызывающего не мутируется: нормализация идет по копии
// слайса плейлистов, а не по общему backing array
func (d ListData) Marshal() ([]byte, error) {
	d.UserList = append([]UserList{}, d.UserList...)
	d.Normalize()
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list data: %w", err)
	}
	return data, nil
}

// MD5 возвращает hex-хеш канонической сериализации документа.
// Используется для детекции изменений между пирами
func (d ListData) MD5() (string, error) {
	data, err := d.Marshal()
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data) //nolint:gosec // wire-совместимость
	return hex.EncodeToString(sum[:]), nil
}

// Clone возвращает глубокую копию документа.
// Мутации списков моделируются как чистые функции, копия обязательна
func (d ListData) Clone() ListData {
	out := ListData{
		DefaultList: append([]Song{}, d.DefaultList...),
		LoveList:    append([]Song{}, d.LoveList...),
		UserList:    make([]UserList, 0, len(d.UserList)),
	}
	for _, ul := range d.UserList {
		out.UserList = append(out.UserList, UserList{
			ID:   ul.ID,
			Name: ul.Name,
			List: append([]Song{}, ul.List...),
		})
	}
	return out
}
