package objstore

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// DateLayout is the layout used when rendering commit dates.
const DateLayout = "Mon Jan 02 15:04 2006 -0700"

// Commit is an immutable snapshot node. Its visible objects are its parent's
// objects overlaid with its own stage.
type Commit struct {
	message   string
	parent    *Commit
	stage     *Stage
	timestamp time.Time
	hash      string

	// objects memoizes the effective object set; safe because commits never change.
	objects atomic.Pointer[map[string]string]

	cidOnce   sync.Once
	contentID string
	cidErr    error
}

// NewCommit freezes stage on top of parent. The commit takes ownership of stage.
func NewCommit(message string, parent *Commit, stage *Stage, ts time.Time) *Commit {
	if stage == nil {
		stage = NewStage()
	}
	return &Commit{
		message:   message,
		parent:    parent,
		stage:     stage,
		timestamp: ts,
		hash:      computeCommitHash(message, ts),
	}
}

func (c *Commit) Message() string      { return c.message }
func (c *Commit) Parent() *Commit      { return c.parent }
func (c *Commit) Timestamp() time.Time { return c.timestamp }
func (c *Commit) Hash() string         { return c.hash }

// Stage returns a copy of the changes this commit applied.
func (c *Commit) Stage() *Stage { return c.stage.clone() }

// Objects returns a copy of every object visible at this commit.
func (c *Commit) Objects() map[string]string {
	return maps.Clone(c.resolve())
}

// Object returns the value of name as seen by this commit.
func (c *Commit) Object(name string) (string, bool) {
	value, ok := c.resolve()[name]
	return value, ok
}

func (c *Commit) HasObject(name string) bool {
	_, ok := c.resolve()[name]
	return ok
}

// resolve walks back to the nearest ancestor with a memoized object set (or
// the root) and replays the stages forward. It never recurses, so history
// depth is bounded only by memory.
func (c *Commit) resolve() map[string]string {
	if objects := c.objects.Load(); objects != nil {
		return *objects
	}

	var chain []*Commit
	base := make(map[string]string)
	for cur := c; cur != nil; cur = cur.parent {
		if objects := cur.objects.Load(); objects != nil {
			base = maps.Clone(*objects)
			break
		}
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].stage.apply(base)
	}

	c.objects.Store(&base)
	return base
}

// ContentID is a content address of the effective object set, unlike Hash
// which only covers timestamp and message.
func (c *Commit) ContentID() (string, error) {
	c.cidOnce.Do(func() {
		c.contentID, c.cidErr = computeContentID(c.resolve())
	})
	return c.contentID, c.cidErr
}

// String renders the commit the way log prints it.
func (c *Commit) String() string {
	return fmt.Sprintf("Commit %s\nDate: %s\n\n\t%s", c.hash, c.timestamp.Format(DateLayout), c.message)
}
