package stats

// Stats maps field keys to the values found in one dump.
type Stats map[string]Value

// Get returns the value of key. Unknown keys are absent.
func (s Stats) Get(key string) Value {
	return s[key]
}

// HitRate derives a hit rate from the miss rate stored under key.
func (s Stats) HitRate(key string) Value {
	miss := s.Get(key)
	if !miss.Present {
		return Absent()
	}

	return FromFloat(1 - miss.Num)
}

// Accesses returns hits plus misses when both are present.
func (s Stats) Accesses(hitsKey, missesKey string) Value {
	hits, misses := s.Get(hitsKey), s.Get(missesKey)
	if !hits.Present || !misses.Present {
		return Absent()
	}

	return FromFloat(hits.Num + misses.Num)
}
