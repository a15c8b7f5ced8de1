package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Plugin is a registered extension. Installing its files is handled outside this service.
type Plugin struct {
	bun.BaseModel `bun:"table:plugins"`

	ID           int64      `bun:",pk,autoincrement" json:"id"`
	Name         string     `bun:"name,unique" json:"name"`
	Version      string     `bun:"version" json:"version"`
	Description  string     `bun:"description" json:"description"`
	Dependencies []string   `bun:"dependencies" json:"dependencies"`
	IsActive     bool       `bun:"is_active" json:"is_active"`
	ActivatedAt  *time.Time `bun:"activated_at" json:"activated_at,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}

// PluginHook binds a plugin callback to a named hook point.
type PluginHook struct {
	bun.BaseModel `bun:"table:plugin_hooks"`

	ID       int64  `bun:",pk,autoincrement" json:"id"`
	PluginID int64  `bun:"plugin_id" json:"plugin_id"`
	Hook     string `bun:"hook" json:"hook"`
	Callback string `bun:"callback" json:"callback"`
	Priority int    `bun:"priority" json:"priority"`
}
