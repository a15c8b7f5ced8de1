package plugin

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/plugin")

// ErrNotFound is returned when a plugin is missing.
var ErrNotFound = errors.New("plugin not found")

// Repository persists the plugin registry and hook bindings.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a plugin repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create registers a plugin.
func (r *Repository) Create(ctx context.Context, p *entity.Plugin) error {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.Create", trace.WithAttributes(attribute.String("plugin.name", p.Name)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(p)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert plugin failed")
	}
	return nil
}

// GetByName loads a plugin.
func (r *Repository) GetByName(ctx context.Context, name string) (*entity.Plugin, error) {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.GetByName", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	p := new(entity.Plugin)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(p).Where("name = ?", name)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select plugin failed")
	}
	return p, nil
}

// List returns every registered plugin.
func (r *Repository) List(ctx context.Context) ([]entity.Plugin, error) {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.List")
	defer span.End()

	var plugins []entity.Plugin
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&plugins).Order("name ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select plugins failed")
	}
	return plugins, nil
}

// SetActive flips the activation flag.
func (r *Repository) SetActive(ctx context.Context, p *entity.Plugin, active bool) error {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.SetActive", trace.WithAttributes(
		attribute.String("plugin.name", p.Name),
		attribute.Bool("active", active),
	))
	defer span.End()

	now := time.Now().UTC()
	p.IsActive = active
	p.UpdatedAt = now
	if active {
		p.ActivatedAt = &now
	}
	q := r.conns.WriterFor(ctx).NewUpdate().Model(p).Column("is_active", "activated_at", "updated_at").WherePK()
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "update plugin failed")
	}
	return nil
}

// CreateHook binds a callback to a hook point.
func (r *Repository) CreateHook(ctx context.Context, h *entity.PluginHook) error {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.CreateHook", trace.WithAttributes(attribute.String("hook", h.Hook)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(h)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert plugin hook failed")
	}
	return nil
}

// ActiveHook pairs a hook binding with its owning plugin name.
type ActiveHook struct {
	entity.PluginHook `bun:",extend"`

	PluginName string `bun:"plugin_name"`
}

// ActiveHooks lists bindings of active plugins for a hook, highest priority first.
func (r *Repository) ActiveHooks(ctx context.Context, hook string) ([]ActiveHook, error) {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.ActiveHooks", trace.WithAttributes(attribute.String("hook", hook)))
	defer span.End()

	var hooks []ActiveHook
	q := r.conns.ReaderFor(ctx).NewSelect().
		Model(&hooks).
		ColumnExpr("plugin_hook.*").
		ColumnExpr("p.name AS plugin_name").
		Join("JOIN plugins AS p ON p.id = plugin_hook.plugin_id").
		Where("plugin_hook.hook = ?", hook).
		Where("p.is_active = ?", true).
		OrderExpr("plugin_hook.priority DESC, plugin_hook.id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select plugin hooks failed")
	}
	return hooks, nil
}

// Dependents lists active plugins that declare name as a dependency.
func (r *Repository) Dependents(ctx context.Context, name string) ([]entity.Plugin, error) {
	ctx, span := repoTracer.Start(ctx, "PluginRepository.Dependents", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	active, err := r.activePlugins(ctx)
	if err != nil {
		return nil, repository.Fail(span, err, nil, "select plugins failed")
	}
	var out []entity.Plugin
	for _, p := range active {
		for _, dep := range p.Dependencies {
			if dep == name {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (r *Repository) activePlugins(ctx context.Context) ([]entity.Plugin, error) {
	var plugins []entity.Plugin
	err := r.conns.ReaderFor(ctx).NewSelect().Model(&plugins).Where("is_active = ?", true).Scan(ctx)
	return plugins, err
}
