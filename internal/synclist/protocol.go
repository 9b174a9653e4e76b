package synclist

// Имена RPC-методов подпротокола синхронизации списков.
// Первым вызовом новой сессии всегда идет getEnabledFeatures
const (
	MethodGetEnabledFeatures = "getEnabledFeatures"
	MethodGetMD5             = "list_sync_get_md5"
	MethodGetSyncMode        = "list_sync_get_sync_mode"
	MethodGetListData        = "list_sync_get_list_data"
	MethodSetListData        = "list_sync_set_list_data"
	MethodFinished           = "list_sync_finished"
	MethodAction             = "list_sync_action"
)

// GetEnabledFeaturesArgs - аргументы переговоров о фичах
type GetEnabledFeaturesArgs struct {
	ServerType string   `json:"serverType"`        // ServerType тип вызывающей стороны
	Supported  Features `json:"supportedFeatures"` // Supported версии поддерживаемых подпротоколов
}
