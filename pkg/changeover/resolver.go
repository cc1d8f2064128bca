package changeover

// Ruleset is an immutable snapshot of every rule needed to resolve pairs
// on one line: the global settings, the line's overrides, all family
// defaults, and the model-to-family index. It is fetched fresh from the
// store per request so concurrent writers are always observed
// consistently; there is no process-wide cache to invalidate.
type Ruleset struct {
	Settings  GlobalSettings
	overrides map[modelPair]int
	families  map[FamilyPair]int
	family    map[string]string
}

// NewRuleset assembles a resolution snapshot from loaded rule rows.
// Same-model override rows are carried in storage but skipped here; the
// diagonal resolves to zero no matter what is stored for it.
func NewRuleset(settings GlobalSettings, overrides []LineOverride, defaults []FamilyDefault, models []MatrixModel) *Ruleset {
	rs := &Ruleset{
		Settings:  settings,
		overrides: make(map[modelPair]int, len(overrides)),
		families:  make(map[FamilyPair]int, len(defaults)),
		family:    make(map[string]string, len(models)),
	}
	for _, ov := range overrides {
		if ov.FromModelID == ov.ToModelID {
			continue
		}
		rs.overrides[modelPair{from: ov.FromModelID, to: ov.ToModelID}] = ov.Minutes
	}
	for _, fd := range defaults {
		rs.families[FamilyPair{FromFamily: fd.FromFamily, ToFamily: fd.ToFamily}] = fd.Minutes
	}
	for _, m := range models {
		rs.family[m.ID] = m.Family
	}
	return rs
}

// Resolve returns the changeover minutes for one directed model pair.
// Tier order is strict and first-match-wins:
//
//  1. same model        -> 0
//  2. line override     -> stored minutes
//  3. family default    -> stored minutes for (fromFamily, toFamily)
//  4. global default    -> settings value
//
// Tiers are never merged or averaged. Missing data at a tier is not an
// error; it falls through to the next tier, so Resolve is total over any
// pair of model IDs.
func (rs *Ruleset) Resolve(fromModelID, toModelID string) ResolvedTime {
	if fromModelID == toModelID {
		return ResolvedTime{Minutes: 0, Source: SourceSameModel}
	}
	if minutes, ok := rs.overrides[modelPair{from: fromModelID, to: toModelID}]; ok {
		return ResolvedTime{Minutes: minutes, Source: SourceLineOverride}
	}
	fromFamily, okFrom := rs.family[fromModelID]
	toFamily, okTo := rs.family[toModelID]
	if okFrom && okTo {
		if minutes, ok := rs.families[FamilyPair{FromFamily: fromFamily, ToFamily: toFamily}]; ok {
			return ResolvedTime{Minutes: minutes, Source: SourceFamilyDefault}
		}
	}
	return ResolvedTime{Minutes: rs.Settings.DefaultMinutes, Source: SourceGlobalDefault}
}

// ExceedsBenchmark reports whether a resolved cell is slower than the
// SMED benchmark. Same-model cells never exceed it.
func (rs *Ruleset) ExceedsBenchmark(rt ResolvedTime) bool {
	return rt.Source != SourceSameModel && rt.Minutes > rs.Settings.BenchmarkMinutes
}
