package achievement

// Set holds already-unlocked achievement ids.
type Set map[string]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is unlocked. A nil set holds nothing.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id as unlocked.
func (s Set) Add(id string) { s[id] = struct{}{} }

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Qualifies reports whether def's predicate holds for m.
func Qualifies(def Definition, m Metrics) bool {
	return def.Value(m) >= def.Target
}

// Progress returns min(1, metric/target).
func Progress(def Definition, m Metrics) float64 {
	v := float64(def.Value(m)) / float64(def.Target)
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Evaluate returns every definition that qualifies under m and is not in
// unlocked, in declaration order. unlocked is not modified.
func (c *Catalog) Evaluate(m Metrics, unlocked Set) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if unlocked.Has(d.ID) {
			continue
		}
		if Qualifies(d, m) {
			out = append(out, d)
		}
	}
	return out
}
