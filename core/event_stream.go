package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rentchain/core/events"
	"rentchain/core/types"
)

const eventHistoryLimit = 2048

// StreamEvent is a committed event tagged with its stream position.
type StreamEvent struct {
	Sequence uint64
	Cursor   string
	Height   uint64
	Event    *types.Event
}

func cloneStreamEvent(in StreamEvent) StreamEvent {
	out := in
	if in.Event != nil {
		attrs := make(map[string]string, len(in.Event.Attributes))
		for k, v := range in.Event.Attributes {
			attrs[k] = v
		}
		out.Event = &types.Event{Type: in.Event.Type, Attributes: attrs}
	}
	return out
}

func (n *Node) publishStream(evt events.Event, height uint64) {
	payload := events.Payload(evt)
	if n == nil || payload == nil {
		return
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan StreamEvent)
	}
	n.streamSeq++
	entry := StreamEvent{
		Sequence: n.streamSeq,
		Cursor:   strconv.FormatUint(n.streamSeq, 10),
		Height:   height,
		Event:    payload,
	}
	entry = cloneStreamEvent(entry)
	n.streamHistory = append(n.streamHistory, entry)
	if len(n.streamHistory) > eventHistoryLimit {
		excess := len(n.streamHistory) - eventHistoryLimit
		trimmed := make([]StreamEvent, eventHistoryLimit)
		copy(trimmed, n.streamHistory[excess:])
		n.streamHistory = trimmed
	}
	// Sends stay under the lock so cancel cannot close a channel mid-send.
	for _, ch := range n.streamSubs {
		select {
		case ch <- cloneStreamEvent(entry):
		default:
		}
	}
	n.streamMu.Unlock()
}

// Subscribe registers a listener for committed events after cursor. The
// returned backlog holds retained events the caller missed; slow listeners
// drop live events rather than block commits.
func (n *Node) Subscribe(ctx context.Context, cursor string) (<-chan StreamEvent, func(), []StreamEvent, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}
	updates := make(chan StreamEvent, 64)

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan StreamEvent)
	}
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	history := make([]StreamEvent, len(n.streamHistory))
	copy(history, n.streamHistory)
	n.streamMu.Unlock()

	backlog := make([]StreamEvent, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneStreamEvent(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.streamMu.Lock()
			if sub, ok := n.streamSubs[id]; ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog, nil
}
