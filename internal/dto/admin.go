package dto

// SyncWorkersRequest is the payload of POST /workers/sync.
type SyncWorkersRequest struct {
	Limit      int    `json:"limit" validate:"gte=0,lte=1000"`
	EmployeeID string `json:"employee_id"`
}

// RegisterPluginRequest is the payload of POST /plugins.
type RegisterPluginRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Version      string   `json:"version" validate:"required,max=30"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies" validate:"dive,required"`
}

// RegisterHookRequest is the payload of POST /plugins/:name/hooks.
type RegisterHookRequest struct {
	Hook     string `json:"hook" validate:"required"`
	Callback string `json:"callback" validate:"required"`
	Priority int    `json:"priority"`
}
