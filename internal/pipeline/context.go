package pipeline

import (
	"safegate/internal/diag"
	"safegate/internal/feature"
	"safegate/internal/ir"
)

// Context is the unit of work threaded through the pipeline: the
// resolved class configuration, the module being transformed, and the
// unit's diagnostic sink. Each translation unit gets its own Context;
// nothing in it is shared across units, which is what makes concurrent
// compilation safe. The active feature set is read from here, never from
// ambient state.
type Context struct {
	Config *feature.SafetyClassConfig
	Module *ir.Module
	Diags  *diag.Sink
	Gate   *Gate
}

// NewContext builds a compilation context for one unit. A nil config
// means no safety class was selected and no feature is active.
func NewContext(cfg *feature.SafetyClassConfig, m *ir.Module) *Context {
	promote := cfg != nil && cfg.WarningsAsErrors
	return &Context{
		Config: cfg,
		Module: m,
		Diags:  diag.NewSink(promote),
		Gate:   NewGate(cfg),
	}
}

// Enabled reports whether a feature identifier is active for this unit.
func (c *Context) Enabled(id string) bool {
	return c.Config.Enabled(id)
}
