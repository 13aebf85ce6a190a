// Package session tracks the "currently open idea" per chat.
package session

import (
	"strconv"

	"github.com/patrickmn/go-cache"
)

// Tracker binds each chat to at most one live idea. Bindings live for the
// process lifetime only and are lost on restart. Binding a chat again
// overwrites the previous idea, which makes the earlier idea unreachable
// through that chat; this one-live-idea-per-chat limit is part of the design.
type Tracker struct {
	bindings *cache.Cache
}

func NewTracker() *Tracker {
	return &Tracker{
		bindings: cache.New(cache.NoExpiration, 0),
	}
}

// Bind makes ideaID the current idea of the chat, replacing any previous
// binding.
func (t *Tracker) Bind(chatID int64, ideaID int64) {
	t.bindings.Set(key(chatID), ideaID, cache.NoExpiration)
}

// Current returns the idea bound to the chat, or false when no idea is open.
func (t *Tracker) Current(chatID int64) (int64, bool) {
	v, ok := t.bindings.Get(key(chatID))
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// Clear removes the chat's binding.
func (t *Tracker) Clear(chatID int64) {
	t.bindings.Delete(key(chatID))
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
