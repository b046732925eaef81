package diag

// Diagnostic codes for the safety-class extension layer.
//
// Code ranges:
// S0001-S0099: class and feature configuration
// S0100-S0199: transformation passes
// W0800-W0899: warnings eligible for class promotion
const (
	// S0001: requested safety class outside {1,2,3}
	ErrorInvalidClass = "S0001"

	// S0002: feature table misconfiguration
	ErrorBadFeatureTable = "S0002"

	// S0100: guard intrinsic survived past final expansion
	ErrorUnexpandedGuard = "S0100"

	// S0101: malformed instruction encountered by a pass
	ErrorMalformedInstr = "S0101"

	// W0800: value-returning function has a path without a return
	WarnMissingReturn = "W0800"

	// W0801: shift or divide operand not provably in range
	WarnUnprovableOperand = "W0801"

	// W0802: indexed address not provably within its base object
	WarnOutOfBoundsIndex = "W0802"
)

// IsWarning reports whether a code is a warning rather than a hard error.
func IsWarning(code string) bool {
	return len(code) > 0 && code[0] == 'W'
}

// Describe returns a human-readable description of a diagnostic code.
func Describe(code string) string {
	switch code {
	case ErrorInvalidClass:
		return "Requested safety class is not one of 1, 2, or 3"
	case ErrorBadFeatureTable:
		return "Feature table entry is malformed or duplicated"
	case ErrorUnexpandedGuard:
		return "Guard intrinsic was not expanded before code generation"
	case ErrorMalformedInstr:
		return "Instruction shape does not match its opcode"
	case WarnMissingReturn:
		return "Value-returning function can fall off the end of its body"
	case WarnUnprovableOperand:
		return "Shift or divide operand cannot be proven in range"
	case WarnOutOfBoundsIndex:
		return "Indexed address cannot be proven inside its base object"
	default:
		return "Unknown diagnostic code"
	}
}
