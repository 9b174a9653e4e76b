package synclist

import (
	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/models"
)

// MergeSongs объединяет списки песен по id: песни получателя сохраняют
// позиции, новые песни источника вставляются в начало или конец
// согласно location. Под merge ничего не удаляется
func MergeSongs(dst, src []models.Song, location string) []models.Song {
	existing := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		existing[s.ID()] = struct{}{}
	}

	var added []models.Song
	for _, s := range src {
		if _, ok := existing[s.ID()]; ok {
			continue
		}
		// Инвариант уникальности id внутри списка
		existing[s.ID()] = struct{}{}
		added = append(added, s)
	}

	if len(added) == 0 {
		return append([]models.Song{}, dst...)
	}

	if location == config.AddMusicLocationBottom {
		return append(append([]models.Song{}, dst...), added...)
	}
	return append(added, dst...)
}

// Merge возвращает документ получателя, дополненный песнями источника.
// Пользовательские плейлисты объединяются по id: общие - песенным merge,
// имеющиеся только у источника - добавляются целиком в конец
func Merge(dst, src models.ListData, location string) models.ListData {
	out := models.ListData{
		DefaultList: MergeSongs(dst.DefaultList, src.DefaultList, location),
		LoveList:    MergeSongs(dst.LoveList, src.LoveList, location),
		UserList:    make([]models.UserList, 0, len(dst.UserList)),
	}

	srcByID := make(map[string]models.UserList, len(src.UserList))
	for _, ul := range src.UserList {
		srcByID[ul.ID] = ul
	}

	for _, ul := range dst.UserList {
		merged := models.UserList{ID: ul.ID, Name: ul.Name, List: append([]models.Song{}, ul.List...)}
		if srcList, ok := srcByID[ul.ID]; ok {
			merged.List = MergeSongs(ul.List, srcList.List, location)
			delete(srcByID, ul.ID)
		}
		out.UserList = append(out.UserList, merged)
	}

	// Плейлисты, которых у получателя нет, добавляются в порядке источника
	for _, ul := range src.UserList {
		if _, ok := srcByID[ul.ID]; !ok {
			continue
		}
		out.UserList = append(out.UserList, models.UserList{
			ID:   ul.ID,
			Name: ul.Name,
			List: append([]models.Song{}, ul.List...),
		})
	}

	out.Normalize()
	return out
}

// Overwrite возвращает документ получателя, перезаписанный источником.
// Не-full вариант заменяет defaultList, loveList и содержимое общих
// пользовательских плейлистов; full дополнительно приводит сам набор
// плейлистов к набору источника (создание, переименование, удаление)
func Overwrite(dst, src models.ListData, full bool) models.ListData {
	out := models.ListData{
		DefaultList: append([]models.Song{}, src.DefaultList...),
		LoveList:    append([]models.Song{}, src.LoveList...),
	}

	if full {
		out.UserList = make([]models.UserList, 0, len(src.UserList))
		for _, ul := range src.UserList {
			out.UserList = append(out.UserList, models.UserList{
				ID:   ul.ID,
				Name: ul.Name,
				List: append([]models.Song{}, ul.List...),
			})
		}
		out.Normalize()
		return out
	}

	srcByID := make(map[string]models.UserList, len(src.UserList))
	for _, ul := range src.UserList {
		srcByID[ul.ID] = ul
	}

	out.UserList = make([]models.UserList, 0, len(dst.UserList))
	for _, ul := range dst.UserList {
		kept := models.UserList{ID: ul.ID, Name: ul.Name, List: append([]models.Song{}, ul.List...)}
		if srcList, ok := srcByID[ul.ID]; ok {
			kept.List = append([]models.Song{}, srcList.List...)
		}
		out.UserList = append(out.UserList, kept)
	}

	out.Normalize()
	return out
}
