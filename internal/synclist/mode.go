// Package synclist реализует движок синхронизации документа списков:
// детекцию изменений по хешу, режимы сверки, алгоритмы merge/overwrite
// и словарь инкрементальных действий.
package synclist

import "fmt"

// SyncMode представляет согласованную стратегию одного раунда сверки.
// "local"/"remote" в имени режима трактуются с точки зрения стороны,
// выбравшей режим; принимающая сторона обязана отразить режим через Mirror
type SyncMode string

const (
	SyncModeMergeLocalRemote     SyncMode = "merge_local_remote"
	SyncModeMergeRemoteLocal     SyncMode = "merge_remote_local"
	SyncModeOverwriteLocalRemote SyncMode = "overwrite_local_remote"
	SyncModeOverwriteRemoteLocal SyncMode = "overwrite_remote_local"
	// _full варианты дополнительно сверяют сам набор пользовательских
	// плейлистов (создание, переименование, удаление целых списков)
	SyncModeOverwriteLocalRemoteFull SyncMode = "overwrite_local_remote_full"
	SyncModeOverwriteRemoteLocalFull SyncMode = "overwrite_remote_local_full"
	// SyncModeCancel прерывает сверку без каких-либо мутаций
	SyncModeCancel SyncMode = "cancel"
)

var mirrors = map[SyncMode]SyncMode{
	SyncModeMergeLocalRemote:         SyncModeMergeRemoteLocal,
	SyncModeMergeRemoteLocal:         SyncModeMergeLocalRemote,
	SyncModeOverwriteLocalRemote:     SyncModeOverwriteRemoteLocal,
	SyncModeOverwriteRemoteLocal:     SyncModeOverwriteLocalRemote,
	SyncModeOverwriteLocalRemoteFull: SyncModeOverwriteRemoteLocalFull,
	SyncModeOverwriteRemoteLocalFull: SyncModeOverwriteLocalRemoteFull,
	SyncModeCancel:                   SyncModeCancel,
}

// Mirror возвращает зеркальный режим: тот же смысл,
// но с точки зрения противоположной стороны
func (m SyncMode) Mirror() SyncMode {
	return mirrors[m]
}

// Valid сообщает, известен ли режим
func (m SyncMode) Valid() bool {
	_, ok := mirrors[m]
	return ok
}

// ParseSyncMode разбирает режим, присланный пиром.
// Пустая строка трактуется как отсутствие предпочтения
func ParseSyncMode(s string) (SyncMode, error) {
	if s == "" {
		return SyncModeMergeRemoteLocal, nil
	}
	m := SyncMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
	return m, nil
}
