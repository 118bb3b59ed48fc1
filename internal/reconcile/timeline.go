// Package reconcile merges optimistic local sends with the messages the
// server confirms, so a client never shows a message twice.
package reconcile

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/util"
)

const DefaultWindow = 30 * time.Second

// Outcome tells what Confirm did with a server message.
type Outcome int

const (
	// Appended: no pending entry matched, the message was added.
	Appended Outcome = iota
	// Replaced: a pending entry was swapped for the confirmed message.
	Replaced
	// Duplicate: the message id was already known and nothing changed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Pending is an optimistic message waiting for its confirmation.
type Pending struct {
	Token          string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// Entry is one line of a conversation as the client should render it.
type Entry struct {
	Pending *Pending
	Message *model.DeliveredMessage
}

func (e Entry) IsPending() bool { return e.Pending != nil }

type conversation struct {
	confirmed []model.DeliveredMessage
	known     map[string]struct{}
	pending   []*Pending
}

// Timeline is safe for concurrent use.
type Timeline struct {
	mu            sync.Mutex
	window        time.Duration
	now           func() time.Time
	conversations map[string]*conversation
}

func NewTimeline(window time.Duration) *Timeline {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Timeline{
		window:        window,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
}

// Window is how old a pending entry may be and still match by content.
func (t *Timeline) Window() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// WithClock replaces the time source. Only meant for tests.
func (t *Timeline) WithClock(now func() time.Time) *Timeline {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

func (t *Timeline) conv(id string) *conversation {
	c, ok := t.conversations[id]
	if !ok {
		c = &conversation{known: make(map[string]struct{})}
		t.conversations[id] = c
	}
	return c
}

// AddPending records an optimistic send and returns its token. Content is
// trimmed the same way the server trims it.
func (t *Timeline) AddPending(conversationID, senderID, content string) (Pending, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return Pending{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := &Pending{
		Token:          token,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        strings.TrimSpace(content),
		CreatedAt:      t.now(),
	}
	c := t.conv(conversationID)
	c.pending = append(c.pending, p)
	return *p, nil
}

// Fail drops a pending entry whose send was rejected. It reports whether the
// token was pending.
func (t *Timeline) Fail(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.conversations {
		for i, p := range c.pending {
			if p.Token == token {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Confirm folds a server message into the timeline. An exact clientToken
// match wins; otherwise the oldest pending entry from the same sender with
// the same content created within the window is replaced.
func (t *Timeline) Confirm(msg model.DeliveredMessage, clientToken string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.conv(msg.ConversationID)
	if _, ok := c.known[msg.ID]; ok {
		return Duplicate
	}

	outcome := Appended
	if idx := t.match(c, msg, clientToken); idx >= 0 {
		c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
		outcome = Replaced
	}

	c.known[msg.ID] = struct{}{}
	c.confirmed = insertOrdered(c.confirmed, msg)
	return outcome
}

func (t *Timeline) match(c *conversation, msg model.DeliveredMessage, clientToken string) int {
	if clientToken != "" {
		for i, p := range c.pending {
			if p.Token == clientToken {
				return i
			}
		}
	}

	now := t.now()
	for i, p := range c.pending {
		if p.SenderID == msg.SenderID && p.Content == msg.Content && now.Sub(p.CreatedAt) <= t.window {
			return i
		}
	}
	return -1
}

// Load merges fetched history, for example after reconnecting.
func (t *Timeline) Load(conversationID string, history []model.DeliveredMessage) {
	for _, msg := range history {
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		t.Confirm(msg, "")
	}
}

// Entries returns confirmed messages in server order followed by pending
// entries in the order they were sent.
func (t *Timeline) Entries(conversationID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conversations[conversationID]
	if !ok {
		return []Entry{}
	}

	entries := make([]Entry, 0, len(c.confirmed)+len(c.pending))
	for i := range c.confirmed {
		msg := c.confirmed[i]
		entries = append(entries, Entry{Message: &msg})
	}
	for _, p := range c.pending {
		pending := *p
		entries = append(entries, Entry{Pending: &pending})
	}
	return entries
}

func (t *Timeline) PendingCount(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conversations[conversationID]; ok {
		return len(c.pending)
	}
	return 0
}

// LastSeq is the highest confirmed sequence, the resume point for history paging.
func (t *Timeline) LastSeq(conversationID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conversations[conversationID]
	if !ok || len(c.confirmed) == 0 {
		return 0
	}
	return c.confirmed[len(c.confirmed)-1].Seq
}

func insertOrdered(msgs []model.DeliveredMessage, msg model.DeliveredMessage) []model.DeliveredMessage {
	idx := sort.Search(len(msgs), func(i int) bool {
		return msg.Message.Before(&msgs[i].Message)
	})
	msgs = append(msgs, model.DeliveredMessage{})
	copy(msgs[idx+1:], msgs[idx:])
	msgs[idx] = msg
	return msgs
}
