package alldebrid

import "strconv"

// syncState is the Live Mode session state: the monotonic counter echoed
// back to the provider, the id-keyed magnet map and an explicit order list
// (newest first). One state belongs to exactly one adapter instance.
type syncState struct {
	counter int
	magnets map[string]Magnet
	order   []string
}

func newSyncState() syncState {
	return syncState{magnets: make(map[string]Magnet)}
}

// applySync folds one magnet/status response into the state and returns the
// new state. A fullsync response replaces everything; an incremental
// response merges changed fields into existing entries and prepends
// genuinely new ids to the order list.
func applySync(state syncState, data magnetStatusData) syncState {
	next := syncState{
		counter: data.Counter,
		magnets: make(map[string]Magnet, len(state.magnets)+len(data.Magnets)),
	}

	if data.Fullsync {
		next.order = make([]string, 0, len(data.Magnets))
		for _, m := range data.Magnets {
			id := strconv.FormatInt(m.Id, 10)
			next.magnets[id] = m
			next.order = append(next.order, id)
		}
		return next
	}

	for id, m := range state.magnets {
		next.magnets[id] = m
	}
	next.order = make([]string, len(state.order))
	copy(next.order, state.order)

	var fresh []string
	for _, m := range data.Magnets {
		id := strconv.FormatInt(m.Id, 10)
		existing, known := next.magnets[id]
		if !known {
			next.magnets[id] = m
			fresh = append(fresh, id)
			continue
		}
		next.magnets[id] = mergeMagnet(existing, m)
	}
	if len(fresh) > 0 {
		next.order = append(fresh, next.order...)
	}
	return next
}

// mergeMagnet overlays the fields present in the diff onto the existing
// record. Absent fields (nil pointers) keep their old value.
func mergeMagnet(old, diff Magnet) Magnet {
	merged := old
	if diff.Filename != nil {
		merged.Filename = diff.Filename
	}
	if diff.Size != nil {
		merged.Size = diff.Size
	}
	if diff.Status != nil {
		merged.Status = diff.Status
	}
	if diff.StatusCode != nil {
		merged.StatusCode = diff.StatusCode
	}
	if diff.Downloaded != nil {
		merged.Downloaded = diff.Downloaded
	}
	if diff.DownloadSpeed != nil {
		merged.DownloadSpeed = diff.DownloadSpeed
	}
	if diff.Seeders != nil {
		merged.Seeders = diff.Seeders
	}
	if diff.UploadDate != nil {
		merged.UploadDate = diff.UploadDate
	}
	if diff.CompletionDate != nil {
		merged.CompletionDate = diff.CompletionDate
	}
	return merged
}
