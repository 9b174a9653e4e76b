package synclist

const (
	// FeatureList - синхронизация документа списков
	FeatureList = "list"
	// FeatureDislike - синхронизация правил дизлайков
	FeatureDislike = "dislike"

	// FeatureListVersion - версия подпротокола list на этой стороне
	FeatureListVersion = 2
	// FeatureDislikeVersion - версия подпротокола dislike на этой стороне
	FeatureDislikeVersion = 1
)

// Feature описывает одну фичу в переговорах: версия подпротокола
// и флаги возможностей
type Feature struct {
	Version      int  `json:"version"`                // Version версия подпротокола
	SkipSnapshot bool `json:"skipSnapshot,omitempty"` // SkipSnapshot можно не делать снапшот перед apply
}

// Features - карта фич по имени
type Features map[string]Feature

// LocalFeatures возвращает фичи, поддерживаемые этой стороной
func LocalFeatures() Features {
	return Features{
		FeatureList:    {Version: FeatureListVersion},
		FeatureDislike: {Version: FeatureDislikeVersion},
	}
}

// Negotiate возвращает подмножество запрошенных фич, версия которых
// точно совпадает с локальной. Фичи вне ответа считаются
// неподдерживаемыми до конца сессии
func Negotiate(requested, local Features) Features {
	enabled := make(Features)
	for name, lf := range local {
		rf, ok := requested[name]
		if !ok {
			continue
		}
		if rf.Version != lf.Version {
			continue
		}
		enabled[name] = lf
	}
	return enabled
}

// Enabled сообщает, включена ли фича
func (f Features) Enabled(name string) bool {
	_, ok := f[name]
	return ok
}
