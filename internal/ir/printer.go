package ir

import (
	"fmt"
	"strings"
)

// Printer renders a module as deterministic text. The rendering is the
// canonical form: the CLI prints it, golden tests compare it, and the
// content fingerprint hashes it.
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer.
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the string representation of a module.
func Print(m *Module) string {
	p := NewPrinter()
	p.printModule(m)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printModule(m *Module) {
	p.writeLine("module %s", m.Name)
	if len(m.Globals) > 0 {
		p.writeLine("")
		for _, g := range m.Globals {
			attrs := ""
			if g.Attrs.Volatile {
				attrs = " !volatile"
			}
			p.writeLine("global @%s: %s = %d%s", g.Name, g.Type, g.Init, attrs)
		}
	}
	for _, fn := range m.Functions {
		p.writeLine("")
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = fmt.Sprintf("%%%s: %s", param.Name, param.Type)
	}
	ret := ""
	if fn.Return != nil {
		ret = fmt.Sprintf(": %s", fn.Return)
	}
	p.writeLine("func %s(%s)%s {", fn.Name, strings.Join(params, ", "), ret)
	p.indent++
	for _, s := range fn.Slots {
		extra := ""
		if s.Attrs.Volatile {
			extra += " !volatile"
		}
		if s.Dummy {
			extra += " !dummy"
		}
		p.writeLine("slot %%%s: %s x %d%s", s.Name, s.Elem, s.Count, extra)
	}
	for _, blk := range fn.Blocks {
		p.indent--
		p.writeLine("%s:", blk.Label)
		p.indent++
		for _, in := range blk.Instructions {
			p.writeLine("%s", in)
		}
		if blk.Terminator != nil {
			p.writeLine("%s", blk.Terminator)
		}
	}
	p.indent--
	p.writeLine("}")
}
