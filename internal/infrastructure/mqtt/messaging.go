package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic. State topics are published retained so
// late subscribers see the current value; commands never are.
//
//	err := client.Publish(mqtt.Topics{}.ThingCommand("knx", "Th1"), body, client.QoS(), false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicName(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), operationTimeout, ErrPublishFailed)
}

// Subscribe registers handler for filter, which may use + and #
// wildcards. The subscription is replayed after every reconnect.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := checkTopicFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.put(subscription{filter: filter, qos: qos, handler: handler})
	if err := await(c.paho.Subscribe(filter, qos, c.wrapHandler(handler)), operationTimeout, ErrSubscribeFailed); err != nil {
		c.subs.remove(filter)
		return err
	}
	return nil
}

// Unsubscribe drops filter. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.subs.remove(filter)
	return await(c.paho.Unsubscribe(filter), operationTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int { return c.subs.len() }

// HasSubscription reports whether filter (exact string) is subscribed.
func (c *Client) HasSubscription(filter string) bool { return c.subs.has(filter) }

// await waits for a paho token, wrapping timeouts and failures in kind.
func await(tok pahomqtt.Token, timeout time.Duration, kind error) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no reply within %v", kind, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

// checkTopicName rejects empty names and names containing wildcards,
// which brokers refuse on publish.
func checkTopicName(topic string) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}

// checkTopicFilter enforces the MQTT wildcard rules: + and # occupy a
// whole level and # is only allowed last.
func checkTopicFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1,
			level != "#" && strings.Contains(level, "#"),
			level != "+" && strings.Contains(level, "+"):
			return fmt.Errorf("%w: bad wildcard in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

type subscription struct {
	filter  string
	qos     byte
	handler MessageHandler
}

// subscriptionSet remembers live subscriptions by filter. The zero value
// is ready to use.
type subscriptionSet struct {
	mu sync.RWMutex
	m  map[string]subscription
}

func (s *subscriptionSet) put(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]subscription)
	}
	s.m[sub.filter] = sub
}

func (s *subscriptionSet) remove(filter string) {
	s.mu.Lock()
	delete(s.m, filter)
	s.mu.Unlock()
}

func (s *subscriptionSet) has(filter string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[filter]
	return ok
}

func (s *subscriptionSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *subscriptionSet) all() []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]subscription, 0, len(s.m))
	for _, sub := range s.m {
		out = append(out, sub)
	}
	return out
}
