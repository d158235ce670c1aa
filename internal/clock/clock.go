package clock

import (
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now() }

// BusinessDate is the calendar day in loc. All per-day numbering and expiry checks use it.
func BusinessDate(c Clock, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format(DateLayout)
}

type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
