package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	pluginrepo "github.com/Additional-Code/shopfloor/internal/repository/plugin"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/plugin")

// Reasons an activation change was refused.
const (
	ReasonAlreadyActive       = "already_active"
	ReasonAlreadyInactive     = "already_inactive"
	ReasonMissingDependency   = "missing_dependency"
	ReasonHasActiveDependents = "has_active_dependents"
)

// Registry persists plugins and hook bindings.
type Registry interface {
	Create(ctx context.Context, p *entity.Plugin) error
	GetByName(ctx context.Context, name string) (*entity.Plugin, error)
	List(ctx context.Context) ([]entity.Plugin, error)
	SetActive(ctx context.Context, p *entity.Plugin, active bool) error
	CreateHook(ctx context.Context, h *entity.PluginHook) error
	ActiveHooks(ctx context.Context, hook string) ([]pluginrepo.ActiveHook, error)
	Dependents(ctx context.Context, name string) ([]entity.Plugin, error)
}

// Service manages the plugin registry.
type Service struct {
	registry Registry
	tx       database.Transactor
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Registry   Registry
	Transactor database.Transactor
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: p.Registry,
		tx:       p.Transactor,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Result reports an activation change. Refusals are results, not errors.
type Result struct {
	Success bool           `json:"success"`
	Plugin  *entity.Plugin `json:"plugin,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Missing []string       `json:"missing,omitempty"`
	Blocked []string       `json:"blocked_by,omitempty"`
}

// RegisterInput describes a plugin to register.
type RegisterInput struct {
	Name         string
	Version      string
	Description  string
	Dependencies []string
}

// Register adds an inactive plugin to the registry.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.Plugin, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.Register", trace.WithAttributes(attribute.String("plugin.name", in.Name)))
	defer span.End()

	name := strings.TrimSpace(in.Name)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(in.Version) == "" {
		fields["version"] = "version is required"
	}
	for _, dep := range in.Dependencies {
		if dep == name {
			fields["dependencies"] = "a plugin cannot depend on itself"
		}
	}
	if len(fields) > 0 {
		return nil, errorbank.Validation("invalid plugin", fields)
	}

	var p *entity.Plugin
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.registry.GetByName(ctx, name); err == nil {
			return errorbank.Conflict("plugin already registered", errorbank.WithModel("plugin", name))
		} else if !errors.Is(err, pluginrepo.ErrNotFound) {
			return err
		}
		now := s.now()
		deps := in.Dependencies
		if deps == nil {
			deps = []string{}
		}
		p = &entity.Plugin{
			Name:         name,
			Version:      in.Version,
			Description:  in.Description,
			Dependencies: deps,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.registry.Create(ctx, p)
	})
	if err != nil {
		s.logger.Warn("plugin registration rejected", zap.String("plugin", name), zap.Error(err))
		return nil, err
	}
	s.logger.Info("plugin registered", zap.String("plugin", name), zap.String("version", p.Version))
	return p, nil
}

// Activate enables a plugin once all its dependencies are active.
func (s *Service) Activate(ctx context.Context, name string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.Activate", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	var res *Result
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		if p.IsActive {
			res = &Result{Plugin: p, Reason: ReasonAlreadyActive}
			return nil
		}
		var missing []string
		for _, dep := range p.Dependencies {
			d, err := s.registry.GetByName(ctx, dep)
			if errors.Is(err, pluginrepo.ErrNotFound) || (err == nil && !d.IsActive) {
				missing = append(missing, dep)
				continue
			}
			if err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			res = &Result{Plugin: p, Reason: ReasonMissingDependency, Missing: missing}
			return nil
		}
		if err := s.registry.SetActive(ctx, p, true); err != nil {
			return err
		}
		res = &Result{Success: true, Plugin: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logResult("activate", name, res)
	return res, nil
}

// Deactivate disables a plugin unless an active plugin depends on it.
func (s *Service) Deactivate(ctx context.Context, name string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.Deactivate", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer span.End()

	var res *Result
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		if !p.IsActive {
			res = &Result{Plugin: p, Reason: ReasonAlreadyInactive}
			return nil
		}
		dependents, err := s.registry.Dependents(ctx, name)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			blocked := make([]string, 0, len(dependents))
			for _, d := range dependents {
				blocked = append(blocked, d.Name)
			}
			res = &Result{Plugin: p, Reason: ReasonHasActiveDependents, Blocked: blocked}
			return nil
		}
		if err := s.registry.SetActive(ctx, p, false); err != nil {
			return err
		}
		res = &Result{Success: true, Plugin: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logResult("deactivate", name, res)
	return res, nil
}

// RegisterHook binds a callback name of the plugin to a hook point.
func (s *Service) RegisterHook(ctx context.Context, pluginName, hook, callback string, priority int) (*entity.PluginHook, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.RegisterHook", trace.WithAttributes(
		attribute.String("plugin.name", pluginName),
		attribute.String("hook", hook),
	))
	defer span.End()

	fields := map[string]string{}
	if strings.TrimSpace(hook) == "" {
		fields["hook"] = "hook is required"
	}
	if strings.TrimSpace(callback) == "" {
		fields["callback"] = "callback is required"
	}
	if len(fields) > 0 {
		return nil, errorbank.Validation("invalid hook", fields)
	}

	p, err := s.load(ctx, pluginName)
	if err != nil {
		return nil, err
	}
	h := &entity.PluginHook{PluginID: p.ID, Hook: hook, Callback: callback, Priority: priority}
	if err := s.registry.CreateHook(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("plugin hook registered", zap.String("plugin", pluginName), zap.String("hook", hook), zap.Int("priority", priority))
	return h, nil
}

// Execution records a simulated hook invocation.
type Execution struct {
	Plugin     string          `json:"plugin"`
	Hook       string          `json:"hook"`
	Callback   string          `json:"callback"`
	Priority   int             `json:"priority"`
	ExecutedAt time.Time       `json:"executed_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ExecuteHook returns one execution record per active binding, highest priority
// first. No plugin code is invoked.
func (s *Service) ExecuteHook(ctx context.Context, hook string, payload json.RawMessage) ([]Execution, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.ExecuteHook", trace.WithAttributes(attribute.String("hook", hook)))
	defer span.End()

	bindings, err := s.registry.ActiveHooks(ctx, hook)
	if err != nil {
		return nil, err
	}
	at := s.now()
	out := make([]Execution, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, Execution{
			Plugin:     b.PluginName,
			Hook:       b.Hook,
			Callback:   b.Callback,
			Priority:   b.Priority,
			ExecutedAt: at,
			Payload:    payload,
		})
	}
	s.logger.Debug("hook executed", zap.String("hook", hook), zap.Int("bindings", len(out)))
	return out, nil
}

// List returns every registered plugin.
func (s *Service) List(ctx context.Context) ([]entity.Plugin, error) {
	ctx, span := serviceTracer.Start(ctx, "PluginService.List")
	defer span.End()

	plugins, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	if plugins == nil {
		plugins = []entity.Plugin{}
	}
	return plugins, nil
}

func (s *Service) load(ctx context.Context, name string) (*entity.Plugin, error) {
	p, err := s.registry.GetByName(ctx, name)
	if errors.Is(err, pluginrepo.ErrNotFound) {
		return nil, errorbank.NotFound("plugin not found", errorbank.WithModel("plugin", name))
	}
	return p, err
}

func (s *Service) logResult(action, name string, res *Result) {
	if res.Success {
		s.logger.Info("plugin "+action+"d", zap.String("plugin", name))
		return
	}
	s.logger.Warn("plugin "+action+" refused",
		zap.String("plugin", name), zap.String("reason", res.Reason),
		zap.Strings("missing", res.Missing), zap.Strings("blocked_by", res.Blocked))
}
