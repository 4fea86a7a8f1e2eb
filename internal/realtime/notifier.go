package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// mustFrame marshals an outbound frame. Payload types in this package always
// marshal; a failure is a programming error.
func mustFrame(event string, data any) []byte {
	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		panic("realtime: marshal frame: " + err.Error())
	}
	return frame
}

// LocalNotifier delivers personal-channel events to subjects connected to
// this process. Offline subjects are silently dropped: the notification is a
// liveness hint, never the data channel.
type LocalNotifier struct {
	Presence *Presence
}

// NotifyIfOnline implements services.Notifier.
func (n *LocalNotifier) NotifyIfOnline(subjectID, event string, payload any) {
	c, ok := n.Presence.Get(subjectID)
	if !ok {
		return
	}
	c.emit(event, payload)
}

// notifyChannelPrefix namespaces personal-channel messages in Redis.
const notifyChannelPrefix = "notify:"

// redisEnvelope is the pub/sub wire shape for cross-instance notifications.
type redisEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RedisNotifier fans personal-channel events out across gateway instances
// via Redis pub/sub. Publishing targets `notify:<subject>`; every instance
// runs Listen and forwards messages for its locally connected subjects. The
// Gateway only sees the services.Notifier interface, so single-process
// deployments keep the in-memory LocalNotifier with no code change.
type RedisNotifier struct {
	rdb   *redis.Client
	local *LocalNotifier
}

// NewRedisNotifier constructs a RedisNotifier delivering locally through the
// given presence registry.
func NewRedisNotifier(rdb *redis.Client, presence *Presence) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, local: &LocalNotifier{Presence: presence}}
}

// NotifyIfOnline implements services.Notifier by publishing to the subject's
// channel. Publish reaches every instance; the one holding the subject's
// connection delivers. Failures are logged and dropped, matching the
// best-effort contract.
func (n *RedisNotifier) NotifyIfOnline(subjectID, event string, payload any) {
	env := redisEnvelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event", event).Msg("realtime: marshal notify payload")
			return
		}
		env.Payload = raw
	}
	body, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("realtime: marshal notify envelope")
		return
	}
	if err := n.rdb.Publish(context.Background(), notifyChannelPrefix+subjectID, body).Err(); err != nil {
		log.Warn().Err(err).Str("subject", subjectID).Msg("realtime: notify publish")
	}
}

// Listen subscribes to all personal channels and forwards messages for
// subjects connected to this instance. Blocks until ctx is cancelled.
func (n *RedisNotifier) Listen(ctx context.Context) error {
	sub := n.rdb.PSubscribe(ctx, notifyChannelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			subject := strings.TrimPrefix(msg.Channel, notifyChannelPrefix)
			var env redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("realtime: bad notify envelope")
				continue
			}
			var payload any
			if len(env.Payload) > 0 {
				payload = env.Payload
			}
			n.local.NotifyIfOnline(subject, env.Event, payload)
		}
	}
}
