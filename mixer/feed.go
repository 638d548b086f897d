package mixer

import (
	"sync"
	"time"
)

// Feed is the single reader of one Source, fanning the chunks it reads out
// to every subscribed Channel. A virtual endpoint's ring is
// single-producer/single-consumer (spec.md §3, §9); when the same source
// backs a channel instance in more than one bus, only a Feed may call
// ReadFrames on it, and every interested Channel subscribes to that one
// Feed rather than reading the source directly.
type Feed struct {
	source Source

	mu          sync.Mutex
	subscribers map[*Channel]struct{}
	running     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewFeed builds a Feed over source. It does not start reading until Start
// is called.
func NewFeed(source Source) *Feed {
	return &Feed{source: source, subscribers: make(map[*Channel]struct{})}
}

// SampleRate is the underlying source's rate.
func (f *Feed) SampleRate() int { return f.source.SampleRate() }

// Subscribe registers ch to receive every chunk this feed reads, whether
// or not the feed is currently running.
func (f *Feed) Subscribe(ch *Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch. Safe to call even if ch was never subscribed.
func (f *Feed) Unsubscribe(ch *Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, ch)
}

// Start begins the read loop. Idempotent.
func (f *Feed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run()
}

// Stop halts the read loop. Idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Feed) run() {
	defer f.wg.Done()

	rate := f.source.SampleRate()
	chunkFrames := rate / int(time.Second/renderQuantum)
	if chunkFrames < 1 {
		chunkFrames = 1
	}
	interval := time.Duration(float64(chunkFrames) / float64(rate) * float64(time.Second))
	if interval <= 0 {
		interval = renderQuantum
	}

	frames := make([]float32, chunkFrames*2)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			n := f.source.ReadFrames(frames)

			f.mu.Lock()
			subs := make([]*Channel, 0, len(f.subscribers))
			for ch := range f.subscribers {
				subs = append(subs, ch)
			}
			f.mu.Unlock()

			for _, ch := range subs {
				ch.deposit(frames, n)
			}
		}
	}
}
