package goengine

import "bytes"

func isKeyed(op uint16) bool {
	return (op >= OpAcquireEqual && op <= OpAcquireLast) || (op >= OpQueryEqual && op <= OpQueryLast)
}

// keyed performs the Acquire and Query families. Query operations mirror
// their Acquire counterparts but leave the data buffer alone.
func (h *handle) keyed(req *request) int32 {
	op := req.op
	queryOnly := op >= OpQueryEqual
	if queryOnly {
		// the Query codes follow the same order as the Acquire codes
		op = op - OpQueryEqual + OpAcquireEqual
	}

	continuing := op == OpAcquireNext || op == OpAcquirePrevious
	if continuing {
		if h.query == nil {
			return StatusInvalidPositioning
		}
		if h.query.key != int(req.keyNumber) {
			return StatusDifferentKeyNumber
		}
	} else if !h.validKey(req) {
		return StatusInvalidKeyNumber
	}

	kn := int(req.keyNumber)
	ix := h.file.indexes[kn]
	key := h.file.keys[kn]
	if int(req.keyLength) < key.length || len(req.key) < key.length {
		return StatusKeyBufferTooShort
	}

	var entry []byte
	var found bool
	switch op {
	case OpAcquireNext:
		entry, found = ix.after(h.query.entry, false)
	case OpAcquirePrevious:
		entry, found = ix.before(h.query.entry, false)
	case OpAcquireFirst:
		entry, found = ix.first()
	case OpAcquireLast:
		entry, found = ix.last()
	default:
		norm := key.normalize(req.key[:key.length])
		switch op {
		case OpAcquireEqual:
			entry, found = ix.after(lowBound(norm), true)
			found = found && bytes.HasPrefix(entry, norm)
		case OpAcquireGreater:
			entry, found = ix.after(highBound(norm), false)
		case OpAcquireGreaterOrEqual:
			entry, found = ix.after(lowBound(norm), true)
		case OpAcquireLess:
			entry, found = ix.before(lowBound(norm), false)
		case OpAcquireLessOrEqual:
			entry, found = ix.before(highBound(norm), true)
		}
	}

	if !found {
		if continuing {
			return StatusEndOfFile
		}
		// a failed seek leaves no logical currency behind
		h.query = nil
		if op == OpAcquireEqual {
			return StatusKeyValueNotFound
		}
		return StatusEndOfFile
	}

	id := entryID(entry)
	h.position = id
	h.query = &query{key: kn, entry: entry}
	copy(req.key, key.extract(h.file.records[id]))

	if queryOnly {
		return StatusSuccess
	}
	return h.putRecord(req, id)
}
