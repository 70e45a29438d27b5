package lobby

import (
	"sync"
	"time"
)

type RecordKind int

const (
	RecordSend RecordKind = iota
	RecordRecv
	RecordNotice
)

func (k RecordKind) String() string {
	switch k {
	case RecordSend:
		return "send"
	case RecordRecv:
		return "recv"
	default:
		return "notice"
	}
}

// Record is one chat log line.
type Record struct {
	Kind RecordKind
	Text string
	At   time.Time
}

// ChatLog is a bounded, mutex-guarded list of records. Watchers run
// synchronously after the record is appended, outside the lock.
type ChatLog struct {
	mu       sync.Mutex
	records  []Record
	max      int
	nextID   int
	watchers []watcher
	now      func() time.Time
}

type watcher struct {
	id int
	fn func(Record)
}

func NewChatLog(max int) *ChatLog {
	if max <= 0 {
		max = 512
	}
	return &ChatLog{max: max, now: time.Now}
}

func (c *ChatLog) Add(kind RecordKind, text string) Record {
	rec := Record{Kind: kind, Text: text, At: c.now()}
	c.mu.Lock()
	c.records = append(c.records, rec)
	if over := len(c.records) - c.max; over > 0 {
		c.records = append([]Record(nil), c.records[over:]...)
	}
	watchers := append([]watcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		w.fn(rec)
	}
	return rec
}

// Watch registers fn for every future record. The returned func removes
// it and is safe to call more than once.
func (c *ChatLog) Watch(fn func(Record)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w.id == id {
				c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

func (c *ChatLog) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *ChatLog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *ChatLog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}
