package core

// triggerRecord is the store-side wrapper of one trigger: the stored copy,
// its lifecycle state, and its position in the ready heap (-1 when not
// queued).
type triggerRecord struct {
	trigger   OperableTrigger
	state     internalTriggerState
	heapIndex int
}

type internalTriggerState int

const (
	stateWaiting internalTriggerState = iota
	stateAcquired
	statePaused
	stateBlocked
	statePausedBlocked
	stateComplete
	stateError
)

// triggerHeap orders WAITING triggers by (next fire time asc, priority
// desc, key asc). It implements container/heap.Interface; records carry
// their index so removal by identity stays O(log n).
type triggerHeap []*triggerRecord

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	return triggerLess(h[i], h[j])
}

func triggerLess(a, b *triggerRecord) bool {
	at, bt := a.trigger.NextFireTime(), b.trigger.NextFireTime()
	switch {
	case at.IsZero() && bt.IsZero():
		// fall through to priority
	case at.IsZero():
		return false
	case bt.IsZero():
		return true
	case !at.Equal(bt):
		return at.Before(bt)
	}
	if ap, bp := a.trigger.Priority(), b.trigger.Priority(); ap != bp {
		return ap > bp
	}
	return a.trigger.Key().Less(b.trigger.Key().Key)
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *triggerHeap) Push(x any) {
	rec := x.(*triggerRecord)
	rec.heapIndex = len(*h)
	*h = append(*h, rec)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.heapIndex = -1
	*h = old[:n-1]
	return rec
}
