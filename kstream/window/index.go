package window

import (
	"sort"
	"sync"
	"time"
)

// entry is one open window or session as seen by the background task.
type entry struct {
	id    string
	group string
	key   interface{}
	start time.Time
	due   time.Time
}

// index is the in memory deadline cache of an operator, rebuilt from the
// store on start. The store stays the source of truth.
type index struct {
	mu      sync.Mutex
	entries map[string]entry
	groups  map[string]map[string]struct{}
}

func newIndex() *index {
	return &index{
		entries: make(map[string]entry),
		groups:  make(map[string]map[string]struct{}),
	}
}

func (i *index) put(e entry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[e.id] = e
	g, ok := i.groups[e.group]
	if !ok {
		g = make(map[string]struct{})
		i.groups[e.group] = g
	}
	g[e.id] = struct{}{}
}

func (i *index) remove(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, ok := i.entries[id]
	if !ok {
		return
	}

	delete(i.entries, id)
	if g, ok := i.groups[e.group]; ok {
		delete(g, id)
		if len(g) == 0 {
			delete(i.groups, e.group)
		}
	}
}

// group returns the entries of a group key ordered by start.
func (i *index) group(group string) []entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var list []entry
	for id := range i.groups[group] {
		list = append(list, i.entries[id])
	}

	sort.Slice(list, func(a, b int) bool {
		return list[a].start.Before(list[b].start)
	})

	return list
}

// due returns the entries for which isDue reports true, oldest deadline first.
func (i *index) due(now time.Time, isDue func(now, due time.Time) bool) []entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var list []entry
	for _, e := range i.entries {
		if isDue(now, e.due) {
			list = append(list, e)
		}
	}

	sort.Slice(list, func(a, b int) bool {
		return list[a].due.Before(list[b].due)
	})

	return list
}

func (i *index) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}
