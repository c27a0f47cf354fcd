package urlsync

import (
	"sync/atomic"

	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

// suppressor breaks the push/pull feedback loop. Every outgoing write
// carries a fresh tag; when the sink surfaces the change caused by that
// write, the event carries the same tag back and is dropped instead of
// reconciled. Without this, every push causes a pull that causes another
// push.
//
// Only the most recently issued tag counts as an echo. Untagged events
// and events carrying an older tag are externally originated and must be
// reconciled: an old tag means the location changed again after our
// write, and that later change is someone else's.
type suppressor struct {
	last atomic.Uint64
}

// next issues a fresh tag for an outgoing write.
func (s *suppressor) next() wire.Tag {
	return wire.Tag(s.last.Add(1))
}

// isEcho reports whether an incoming event is the echo of the last
// issued write.
func (s *suppressor) isEcho(t wire.Tag) bool {
	return t != 0 && uint64(t) == s.last.Load()
}
