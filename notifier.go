package shieldcache

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	classifier "github.com/shield-cache/shield-cache/pkg/request-classifier"

	"github.com/rs/zerolog"
)

// Control message types exchanged with application instances.
const (
	MsgConfirmDelete = "CONFIRM_DELETE"
	MsgHealthCheck   = "SW_HEALTH_CHECK"
	MsgHealthOK      = "SW_HEALTH_OK"
	MsgActivated     = "SW_ACTIVATED"
)

// ControlMessage is the JSON payload exchanged between the interceptor and
// application instances. It lives only for the duration of one exchange.
type ControlMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Notifier relays control messages between the interceptor and connected
// application instances. Messages from foreign origins and malformed
// messages are dropped without any reply to the sender.
type Notifier struct {
	origin  string
	version func() string
	log     zerolog.Logger

	mu     sync.Mutex
	subs   map[int]chan ControlMessage
	nextID int
}

// NewNotifier creates a notifier bound to the given own origin.
// version reports the currently active generation id for health replies.
func NewNotifier(origin string, version func() string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		origin:  origin,
		version: version,
		log:     logger,
		subs:    make(map[int]chan ControlMessage),
	}
}

// Subscribe registers a connected application instance.
// The returned channel receives every broadcast until Unsubscribe.
func (n *Notifier) Subscribe() (int, <-chan ControlMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	ch := make(chan ControlMessage, 8)
	n.subs[id] = ch
	return id, ch
}

func (n *Notifier) Unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Broadcast delivers the message to every connected instance, including
// ones that subscribed after the current generation activated.
// Slow consumers have the message dropped rather than blocking the caller.
func (n *Notifier) Broadcast(msg ControlMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		select {
		case ch <- msg:
		default:
			n.log.Warn().Int("subscriber", id).Str("type", msg.Type).Msg("Dropping message to slow subscriber")
		}
	}
}

// Claim announces a newly activated generation to every connected instance.
func (n *Notifier) Claim(version string) {
	n.Broadcast(ControlMessage{Type: MsgActivated, Version: version})
}

// Handle processes one inbound control message from the given sender origin.
// The returned reply is non-nil only for messages that warrant a direct
// response to the sender. Dropped messages produce neither reply nor error.
func (n *Notifier) Handle(senderOrigin string, payload []byte) *ControlMessage {
	if !classifier.OriginsEqual(senderOrigin, n.origin) {
		n.log.Debug().Str("origin", senderOrigin).Msg("Dropping control message from foreign origin")
		return nil
	}
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		n.log.Debug().Err(err).Msg("Dropping malformed control message")
		return nil
	}
	switch msg.Type {
	case MsgConfirmDelete:
		if msg.ProjectID == "" {
			n.log.Debug().Msg("Dropping deletion confirmation without project id")
			return nil
		}
		// relay only: the application layer gates the actual deletion on
		// user confirmation
		n.Broadcast(ControlMessage{Type: MsgConfirmDelete, ProjectID: msg.ProjectID})
		return nil
	case MsgHealthCheck:
		return &ControlMessage{Type: MsgHealthOK, Version: n.version()}
	default:
		n.log.Debug().Str("type", msg.Type).Msg("Dropping control message of unknown type")
		return nil
	}
}

// MessageHandler exposes Handle over HTTP.
// The sender origin is taken from the Origin request header. Dropped
// messages get an empty 204 so no error detail leaks to the sender.
func (n *Notifier) MessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		reply := n.Handle(r.Header.Get("Origin"), payload)
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reply); err != nil {
			n.log.Error().Err(err).Msg("Could not write control reply")
		}
	}
}

// EventsHandler streams broadcast messages to an application instance as
// server-sent events. The subscription lasts until the client disconnects.
func (n *Notifier) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" && !classifier.OriginsEqual(origin, n.origin) {
			n.log.Debug().Str("origin", origin).Msg("Rejecting event stream from foreign origin")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		id, ch := n.Subscribe()
		defer n.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					n.log.Error().Err(err).Msg("Could not encode broadcast message")
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}
