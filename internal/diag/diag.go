package diag

import (
	"fmt"
	"strings"
)

// Severity of a diagnostic.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Note    Severity = "note"
)

// Diagnostic is one compile-time finding, located by function and
// instruction rather than source position since the input is IR.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Function string
	Promoted bool // warning promoted to error by the selected class
}

func (d Diagnostic) String() string {
	loc := ""
	if d.Function != "" {
		loc = fmt.Sprintf(" in %s", d.Function)
	}
	suffix := ""
	if d.Promoted {
		suffix = " (promoted from warning)"
	}
	return fmt.Sprintf("%s[%s]: %s%s%s", d.Severity, d.Code, d.Message, loc, suffix)
}

// Sink collects the diagnostics of one compilation unit. When
// PromoteWarnings is set (classes 1 and 2), every reported warning is
// recorded as an error, which later halts the unit.
type Sink struct {
	PromoteWarnings bool
	diags           []Diagnostic
	errorCount      int
}

// NewSink creates a sink; promote selects warnings-as-errors behavior.
func NewSink(promote bool) *Sink {
	return &Sink{PromoteWarnings: promote}
}

// Errorf reports a hard error.
func (s *Sink) Errorf(code, fn, format string, args ...interface{}) {
	s.diags = append(s.diags, Diagnostic{
		Severity: Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Function: fn,
	})
	s.errorCount++
}

// Warnf reports a warning, promoting it when the class demands.
func (s *Sink) Warnf(code, fn, format string, args ...interface{}) {
	d := Diagnostic{
		Severity: Warning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Function: fn,
	}
	if s.PromoteWarnings {
		d.Severity = Error
		d.Promoted = true
		s.errorCount++
	}
	s.diags = append(s.diags, d)
}

// Diagnostics returns everything reported so far, in order.
func (s *Sink) Diagnostics() []Diagnostic { return s.diags }

// HasErrors reports whether any error (including promoted warnings) was
// recorded.
func (s *Sink) HasErrors() bool { return s.errorCount > 0 }

// Err returns a DiagnosticError covering the recorded errors, or nil.
func (s *Sink) Err() error {
	if !s.HasErrors() {
		return nil
	}
	return &DiagnosticError{Diagnostics: s.diags, Errors: s.errorCount}
}

// DiagnosticError halts compilation of a unit. It is recoverable only by
// fixing the input, never by the pipeline itself.
type DiagnosticError struct {
	Diagnostics []Diagnostic
	Errors      int
}

func (e *DiagnosticError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compilation halted with %d error(s)", e.Errors)
	for _, d := range e.Diagnostics {
		if d.Severity == Error {
			b.WriteString("\n  ")
			b.WriteString(d.String())
		}
	}
	return b.String()
}
