package feature

// SafetyClassConfig is the per-compilation-unit result of class
// resolution: the selected level and the set of active feature
// identifiers. It is owned exclusively by the unit's compilation context.
type SafetyClassConfig struct {
	SelectedLevel    int
	ActiveFeatures   map[string]bool
	RandomSeed       *uint64 // optional caller-supplied randomizer seed
	WarningsAsErrors bool    // true for classes 1 and 2
}

// Enabled reports whether a feature identifier is active. A nil config
// means no class was selected, so nothing is active.
func (c *SafetyClassConfig) Enabled(id string) bool {
	if c == nil {
		return false
	}
	return c.ActiveFeatures[id]
}

// Resolve computes the active feature set for a requested class level
// against a registry. It is a pure function of its arguments: no side
// effects, safe to call concurrently, and two calls with the same level
// yield identical sets. Levels outside {1,2,3} fail with
// InvalidClassError.
func Resolve(level int, reg *Registry) (*SafetyClassConfig, error) {
	if level < 1 || level > 3 {
		return nil, &InvalidClassError{Level: level}
	}
	cfg := &SafetyClassConfig{
		SelectedLevel:    level,
		ActiveFeatures:   make(map[string]bool),
		WarningsAsErrors: level <= 2,
	}
	for _, d := range reg.Features() {
		if d.ActiveAt(level) {
			cfg.ActiveFeatures[d.ID] = true
		}
	}
	return cfg, nil
}
