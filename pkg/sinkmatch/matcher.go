package sinkmatch

// The matching cascade re-associates a persisted device record with its
// current live handle. Ordering matters and is a contract:
// serial numbers are globally unique and survive port changes; a bus path is
// stable per physical port but not per device; vendor/product pairs are
// shared across identical units and need the ALSA long card name as a
// tie-breaker; the last-known sink name is the weakest signal because the
// sink name is exactly what may have changed.
//
// Every matcher is pure: it gets a record and a fresh device snapshot, does
// no I/O, and returns the matched handle or "".

type matcherFunc func(rec DeviceRecord, live []LiveDevice) string

var matchCascade = []struct {
	method  MatchMethod
	matches matcherFunc
}{
	{MatchBySerial, matchBySerial},
	{MatchByBusPath, matchByBusPath},
	{MatchByVendorProduct, matchByVendorProduct},
	{MatchBySinkName, matchBySinkName},
}

// ResolveSinkName resolves the current handle for a persisted record against
// a live device snapshot. It returns "" when nothing matches, which is a
// normal outcome - an unplugged device, an unmatchable record, an empty
// snapshot. First successful cascade step wins.
func ResolveSinkName(rec DeviceRecord, live []LiveDevice) string {
	for _, step := range matchCascade {
		if sinkName := step.matches(rec, live); sinkName != "" {
			return sinkName
		}
	}

	return ""
}

// ClassifyMatch re-derives which cascade criterion explains an already
// resolved pairing. It is an independent re-check rather than a side effect
// of resolution, so batch reporting can't drift from what the cascade
// actually did.
func ClassifyMatch(rec DeviceRecord, dev LiveDevice) MatchMethod {
	ids := rec.Identifiers

	if ids != nil && dev.Identifiers != nil {
		if equalFold(ids.Serial, dev.Identifiers.Serial) {
			return MatchBySerial
		}

		if equalFold(ids.BusPath, dev.Identifiers.BusPath) {
			return MatchByBusPath
		}

		if equalFold(ids.VendorID, dev.Identifiers.VendorID) &&
			equalFold(ids.ProductID, dev.Identifiers.ProductID) {
			return MatchByVendorProduct
		}
	}

	if equalFold(rec.SinkName, dev.ID) {
		return MatchBySinkName
	}

	return MatchNone
}

func matchBySerial(rec DeviceRecord, live []LiveDevice) string {
	if rec.Identifiers == nil || rec.Identifiers.Serial == "" {
		return ""
	}

	// if the backend ever reports two devices with the same serial that's a
	// data-quality issue on its side; we take the first in enumeration order
	for _, dev := range live {
		if dev.Identifiers != nil && equalFold(rec.Identifiers.Serial, dev.Identifiers.Serial) {
			return dev.ID
		}
	}

	return ""
}

func matchByBusPath(rec DeviceRecord, live []LiveDevice) string {
	if rec.Identifiers == nil || rec.Identifiers.BusPath == "" {
		return ""
	}

	for _, dev := range live {
		if dev.Identifiers != nil && equalFold(rec.Identifiers.BusPath, dev.Identifiers.BusPath) {
			return dev.ID
		}
	}

	return ""
}

func matchByVendorProduct(rec DeviceRecord, live []LiveDevice) string {
	ids := rec.Identifiers
	if ids == nil || ids.VendorID == "" || ids.ProductID == "" {
		return ""
	}

	var candidates []LiveDevice

	for _, dev := range live {
		if dev.Identifiers == nil {
			continue
		}

		if equalFold(ids.VendorID, dev.Identifiers.VendorID) &&
			equalFold(ids.ProductID, dev.Identifiers.ProductID) {
			candidates = append(candidates, dev)
		}
	}

	if len(candidates) == 1 {
		return candidates[0].ID
	}

	// multiple identical units: the ALSA long card name is the only thing
	// telling them apart. without it we refuse to guess.
	if len(candidates) > 1 && ids.ALSALongCardName != "" {
		for _, dev := range candidates {
			if equalFold(ids.ALSALongCardName, dev.Identifiers.ALSALongCardName) {
				return dev.ID
			}
		}
	}

	return ""
}

func matchBySinkName(rec DeviceRecord, live []LiveDevice) string {
	if rec.SinkName == "" {
		return ""
	}

	for _, dev := range live {
		if equalFold(rec.SinkName, dev.ID) {
			return dev.ID
		}
	}

	return ""
}
