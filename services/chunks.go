package services

// ChunkList is an ordered list of container chunks with the handful of
// positional edits metadata embedding needs. It knows nothing about
// serialization, so PNG and RIFF surgery share it.
type ChunkList[T any] struct {
	items []T
}

func NewChunkList[T any](items []T) *ChunkList[T] {
	return &ChunkList[T]{items: append([]T(nil), items...)}
}

func (l *ChunkList[T]) Items() []T { return l.items }

func (l *ChunkList[T]) Len() int { return len(l.items) }

// Index returns the position of the first item matching pred, or -1.
func (l *ChunkList[T]) Index(pred func(T) bool) int {
	for i, it := range l.items {
		if pred(it) {
			return i
		}
	}
	return -1
}

// RemoveFunc drops every item matching pred and returns how many were removed.
func (l *ChunkList[T]) RemoveFunc(pred func(T) bool) int {
	kept := l.items[:0]
	removed := 0
	for _, it := range l.items {
		if pred(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	l.items = kept
	return removed
}

// InsertBefore places items ahead of the first match. It reports false when
// nothing matches.
func (l *ChunkList[T]) InsertBefore(pred func(T) bool, items ...T) bool {
	i := l.Index(pred)
	if i < 0 {
		return false
	}
	l.insertAt(i, items)
	return true
}

// InsertAfter places items right after the first match. It reports false when
// nothing matches.
func (l *ChunkList[T]) InsertAfter(pred func(T) bool, items ...T) bool {
	i := l.Index(pred)
	if i < 0 {
		return false
	}
	l.insertAt(i+1, items)
	return true
}

func (l *ChunkList[T]) Prepend(items ...T) {
	l.insertAt(0, items)
}

func (l *ChunkList[T]) insertAt(i int, items []T) {
	out := make([]T, 0, len(l.items)+len(items))
	out = append(out, l.items[:i]...)
	out = append(out, items...)
	out = append(out, l.items[i:]...)
	l.items = out
}
