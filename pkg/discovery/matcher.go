package discovery

// Matches reports whether info satisfies req.
func Matches(req CapabilityRequirement, info ResponderInfo) bool {
	_, ok := Match(req, info)
	return ok
}

// Match checks req against info and returns the matched subset.
//
// A responder qualifies iff, for every requested technology, it advertises
// that technology, the requested interfaces (when any) intersect the
// advertised ones, and every requested feature is advertised. Technology
// features may be advertised on the technology or at the responder level;
// top-level features may be advertised anywhere.
//
// The returned requirement contains only what was asked for and found: for
// each technology, the intersecting interfaces and the requested features.
func Match(req CapabilityRequirement, info ResponderInfo) (CapabilityRequirement, bool) {
	matched := CapabilityRequirement{
		Technologies: make([]Technology, 0, len(req.Technologies)),
		Features:     []string{},
	}

	for _, want := range req.Technologies {
		have, ok := findTechnology(info.Technologies, want.Type)
		if !ok {
			return CapabilityRequirement{}, false
		}

		ifaces := []string{}
		if len(want.Interfaces) > 0 {
			ifaces = intersect(want.Interfaces, have.Interfaces)
			if len(ifaces) == 0 {
				return CapabilityRequirement{}, false
			}
		}

		for _, f := range want.Features {
			if !contains(have.Features, f) && !contains(info.Features, f) {
				return CapabilityRequirement{}, false
			}
		}

		matched.Technologies = append(matched.Technologies, Technology{
			Type:       want.Type,
			Interfaces: ifaces,
			Features:   cloneStrings(want.Features),
		})
	}

	for _, f := range req.Features {
		if !advertisesFeature(info, f) {
			return CapabilityRequirement{}, false
		}
	}
	matched.Features = cloneStrings(req.Features)

	return matched, true
}

func findTechnology(techs []Technology, typ string) (Technology, bool) {
	for _, t := range techs {
		if t.Type == typ {
			return t, true
		}
	}
	return Technology{}, false
}

func advertisesFeature(info ResponderInfo, f string) bool {
	if contains(info.Features, f) {
		return true
	}
	for _, t := range info.Technologies {
		if contains(t.Features, f) {
			return true
		}
	}
	return false
}

// intersect returns the elements of want present in have, in want's order.
func intersect(want, have []string) []string {
	out := []string{}
	for _, w := range want {
		if contains(have, w) && !contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// normalizeRequirement replaces nil slices with empty ones so the wire form
// always carries arrays.
func normalizeRequirement(req CapabilityRequirement) CapabilityRequirement {
	out := CapabilityRequirement{
		Technologies: make([]Technology, 0, len(req.Technologies)),
		Features:     cloneStrings(req.Features),
	}
	for _, t := range req.Technologies {
		out.Technologies = append(out.Technologies, Technology{
			Type:       t.Type,
			Interfaces: cloneStrings(t.Interfaces),
			Features:   cloneStrings(t.Features),
		})
	}
	return out
}
