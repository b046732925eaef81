package pipeline

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("safegate.pipeline")

// Pass is a single transformation over a compilation unit. A pass
// queries the active feature set once at entry through the context and
// either runs unmodified, runs restricted, or skips itself.
type Pass interface {
	Name() string
	Description() string
	Apply(ctx *Context) bool // reports whether the module changed
}

// Pipeline runs passes strictly sequentially, in a fixed order, to
// completion. There is no intra-unit parallelism; concurrency happens
// across units, each with its own Context.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the scheduled passes in execution order.
func (p *Pipeline) Passes() []Pass { return p.passes }

// Run executes every pass on the unit. It stops early when a pass has
// reported errors (including class-promoted warnings) and returns the
// unit's DiagnosticError; the module is then not usable for code
// generation. One unit's failure never touches the registry or any
// other unit.
func (p *Pipeline) Run(ctx *Context) error {
	for _, pass := range p.passes {
		log.Debugf("running pass %s", pass.Name())
		changed := pass.Apply(ctx)
		if changed {
			log.Debugf("pass %s changed the module", pass.Name())
		}
		if ctx.Diags.HasErrors() {
			log.Errorf("pass %s halted compilation of %s", pass.Name(), ctx.Module.Name)
			return ctx.Diags.Err()
		}
	}
	return ctx.Diags.Err()
}
