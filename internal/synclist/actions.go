package synclist

import (
	"encoding/json"
	"fmt"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/models"
)

// Идентификаторы встроенных списков в адресации действий.
// Любой другой id адресует пользовательский плейлист
const (
	ListIDDefault = "default"
	ListIDLove    = "love"
)

// Имена инкрементальных действий. Каждая локальная правка после
// первичной сверки выражается ровно одним действием из этого словаря
const (
	ActionListDataOverwrite   = "list_data_overwrite"
	ActionListCreate          = "list_create"
	ActionListRemove          = "list_remove"
	ActionListUpdate          = "list_update"
	ActionListUpdatePosition  = "list_update_position"
	ActionMusicAdd            = "list_music_add"
	ActionMusicMove           = "list_music_move"
	ActionMusicRemove         = "list_music_remove"
	ActionMusicUpdate         = "list_music_update"
	ActionMusicUpdatePosition = "list_music_update_position"
	ActionMusicOverwrite      = "list_music_overwrite"
	ActionMusicClear          = "list_music_clear"
)

// Action представляет одно инкрементальное действие на проводе
type Action struct {
	Action string          `json:"action"`         // Action имя действия из словаря
	Data   json.RawMessage `json:"data,omitempty"` // Data типизированный payload действия
}

// NewAction собирает действие с сериализованным payload
func NewAction(name string, data any) (Action, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Action{}, fmt.Errorf("failed to marshal action %q: %w", name, err)
	}
	return Action{Action: name, Data: raw}, nil
}

// ListInfo - идентификатор и имя плейлиста без содержимого
type ListInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payload-типы действий
type (
	ListCreateData struct {
		Position int               `json:"position"`
		Lists    []models.UserList `json:"lists"`
	}
	ListRemoveData struct {
		IDs []string `json:"ids"`
	}
	ListUpdateData struct {
		Lists []ListInfo `json:"lists"`
	}
	ListUpdatePositionData struct {
		Position int      `json:"position"`
		IDs      []string `json:"ids"`
	}
	MusicAddData struct {
		ListID   string        `json:"listId"`
		Location string        `json:"location,omitempty"`
		Songs    []models.Song `json:"songs"`
	}
	MusicMoveData struct {
		FromListID string        `json:"fromListId"`
		ToListID   string        `json:"toListId"`
		Location   string        `json:"location,omitempty"`
		Songs      []models.Song `json:"songs"`
	}
	MusicRemoveData struct {
		ListID string   `json:"listId"`
		IDs    []string `json:"ids"`
	}
	MusicUpdateData struct {
		ListID string        `json:"listId"`
		Songs  []models.Song `json:"songs"`
	}
	MusicUpdatePositionData struct {
		ListID   string        `json:"listId"`
		Position int           `json:"position"`
		Songs    []models.Song `json:"songs"`
	}
	MusicOverwriteData struct {
		ListID string        `json:"listId"`
		Songs  []models.Song `json:"songs"`
	}
	MusicClearData struct {
		ListIDs []string `json:"listIds"`
	}
)

// Apply применяет действие к документу и возвращает новый документ,
// не мутируя исходный. Действия идемпотентны через пересчет членства
// по множествам id; исключение - действия позиционирования, где индекс
// трактуется по состоянию списка после изъятия перемещаемых элементов
func Apply(doc models.ListData, a Action) (models.ListData, error) {
	out := doc.Clone()
	out.Normalize()

	switch a.Action {
	case ActionListDataOverwrite:
		var d models.ListData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		d = d.Clone()
		d.Normalize()
		return d, nil

	case ActionListCreate:
		var d ListCreateData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		existing := make(map[string]struct{}, len(out.UserList))
		for _, ul := range out.UserList {
			existing[ul.ID] = struct{}{}
		}
		var fresh []models.UserList
		for _, ul := range d.Lists {
			if _, ok := existing[ul.ID]; ok {
				continue // уже создан, повторное применение безопасно
			}
			ul.List = append([]models.Song{}, ul.List...)
			fresh = append(fresh, ul)
		}
		out.UserList = insertListsAt(out.UserList, d.Position, fresh)
		return out, nil

	case ActionListRemove:
		var d ListRemoveData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		out.UserList = removeListsByID(out.UserList, d.IDs)
		return out, nil

	case ActionListUpdate:
		var d ListUpdateData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		byID := make(map[string]ListInfo, len(d.Lists))
		for _, info := range d.Lists {
			byID[info.ID] = info
		}
		for i := range out.UserList {
			if info, ok := byID[out.UserList[i].ID]; ok {
				out.UserList[i].Name = info.Name
			}
		}
		return out, nil

	case ActionListUpdatePosition:
		var d ListUpdatePositionData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		moving := make(map[string]struct{}, len(d.IDs))
		for _, id := range d.IDs {
			moving[id] = struct{}{}
		}
		var taken, rest []models.UserList
		for _, ul := range out.UserList {
			if _, ok := moving[ul.ID]; ok {
				taken = append(taken, ul)
			} else {
				rest = append(rest, ul)
			}
		}
		// Позиция считается по списку уже без перемещаемых элементов
		out.UserList = insertListsAt(rest, d.Position, taken)
		return out, nil

	case ActionMusicAdd:
		var d MusicAddData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		songs, err := songsOf(&out, d.ListID)
		if err != nil {
			return models.ListData{}, err
		}
		*songs = MergeSongs(*songs, d.Songs, addLocation(d.Location))
		return out, nil

	case ActionMusicMove:
		var d MusicMoveData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		from, err := songsOf(&out, d.FromListID)
		if err != nil {
			return models.ListData{}, err
		}
		ids := make([]string, 0, len(d.Songs))
		for _, s := range d.Songs {
			ids = append(ids, s.ID())
		}
		*from = removeSongsByID(*from, ids)
		to, err := songsOf(&out, d.ToListID)
		if err != nil {
			return models.ListData{}, err
		}
		*to = MergeSongs(*to, d.Songs, addLocation(d.Location))
		return out, nil

	case ActionMusicRemove:
		var d MusicRemoveData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		songs, err := songsOf(&out, d.ListID)
		if err != nil {
			return models.ListData{}, err
		}
		*songs = removeSongsByID(*songs, d.IDs)
		return out, nil

	case ActionMusicUpdate:
		var d MusicUpdateData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		songs, err := songsOf(&out, d.ListID)
		if err != nil {
			return models.ListData{}, err
		}
		byID := make(map[string]models.Song, len(d.Songs))
		for _, s := range d.Songs {
			byID[s.ID()] = s
		}
		for i := range *songs {
			if upd, ok := byID[(*songs)[i].ID()]; ok {
				(*songs)[i] = upd
			}
		}
		return out, nil

	case ActionMusicUpdatePosition:
		var d MusicUpdatePositionData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		songs, err := songsOf(&out, d.ListID)
		if err != nil {
			return models.ListData{}, err
		}
		ids := make([]string, 0, len(d.Songs))
		for _, s := range d.Songs {
			ids = append(ids, s.ID())
		}
		// Сначала изъятие, затем вставка: позиция трактуется
		// по состоянию списка после удаления
		rest := removeSongsByID(*songs, ids)
		*songs = insertSongsAt(rest, d.Position, d.Songs)
		return out, nil

	case ActionMusicOverwrite:
		var d MusicOverwriteData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		songs, err := songsOf(&out, d.ListID)
		if err != nil {
			return models.ListData{}, err
		}
		*songs = append([]models.Song{}, d.Songs...)
		return out, nil

	case ActionMusicClear:
		var d MusicClearData
		if err := unmarshalData(a, &d); err != nil {
			return models.ListData{}, err
		}
		for _, id := range d.ListIDs {
			songs, err := songsOf(&out, id)
			if err != nil {
				return models.ListData{}, err
			}
			*songs = []models.Song{}
		}
		return out, nil

	default:
		return models.ListData{}, fmt.Errorf("unknown sync action %q", a.Action)
	}
}

func unmarshalData(a Action, v any) error {
	if err := json.Unmarshal(a.Data, v); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", a.Action, err)
	}
	return nil
}

func addLocation(loc string) string {
	if loc == "" {
		return config.AddMusicLocationTop
	}
	return loc
}

// songsOf возвращает указатель на адресуемый список внутри документа
func songsOf(doc *models.ListData, listID string) (*[]models.Song, error) {
	switch listID {
	case ListIDDefault:
		return &doc.DefaultList, nil
	case ListIDLove:
		return &doc.LoveList, nil
	}
	for i := range doc.UserList {
		if doc.UserList[i].ID == listID {
			return &doc.UserList[i].List, nil
		}
	}
	return nil, fmt.Errorf("list %q not found", listID)
}

func removeSongsByID(list []models.Song, ids []string) []models.Song {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]models.Song, 0, len(list))
	for _, s := range list {
		if _, ok := drop[s.ID()]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func insertSongsAt(list []models.Song, pos int, songs []models.Song) []models.Song {
	pos = clamp(pos, len(list))
	out := make([]models.Song, 0, len(list)+len(songs))
	out = append(out, list[:pos]...)
	out = append(out, songs...)
	out = append(out, list[pos:]...)
	return out
}

func insertListsAt(list []models.UserList, pos int, lists []models.UserList) []models.UserList {
	pos = clamp(pos, len(list))
	out := make([]models.UserList, 0, len(list)+len(lists))
	out = append(out, list[:pos]...)
	out = append(out, lists...)
	out = append(out, list[pos:]...)
	return out
}

func removeListsByID(list []models.UserList, ids []string) []models.UserList {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]models.UserList, 0, len(list))
	for _, ul := range list {
		if _, ok := drop[ul.ID]; ok {
			continue
		}
		out = append(out, ul)
	}
	return out
}

func clamp(pos, max int) int {
	if pos < 0 {
		return 0
	}
	if pos > max {
		return max
	}
	return pos
}
