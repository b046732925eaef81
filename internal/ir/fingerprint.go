package ir

import "hash/fnv"

// Fingerprint returns a 64-bit content hash of the module's canonical
// text. The layout randomizer folds it into its seed so the permutation
// is a function of seed and module content, never seed alone.
func Fingerprint(m *Module) uint64 {
	h := fnv.New64a()
	h.Write([]byte(Print(m)))
	return h.Sum64()
}
