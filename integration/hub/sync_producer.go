//go:build integration
// +build integration

package hub

import (
	"bytes"
	"sync"

	"github.com/Shopify/sarama"
)

// SyncProducer records everything the relay would publish to the hub and
// can be told to fail messages whose payload contains a marker, which in
// practice is the scanned code.
type SyncProducer struct {
	sync.Mutex
	produced    map[string][]*sarama.ProducerMessage
	msgsToError map[string]error
}

func NewSyncProducer() *SyncProducer {
	return &SyncProducer{
		produced:    map[string][]*sarama.ProducerMessage{},
		msgsToError: map[string]error{},
	}
}

func (sp *SyncProducer) AddError(marker string, err error) {
	sp.Lock()
	defer sp.Unlock()
	sp.msgsToError[marker] = err
}

func (sp *SyncProducer) ClearError(marker string) {
	sp.Lock()
	defer sp.Unlock()
	delete(sp.msgsToError, marker)
}

func (sp *SyncProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	sp.Lock()
	defer sp.Unlock()

	b, err := msg.Value.Encode()
	if err != nil {
		panic(err)
	}

	for marker, merr := range sp.msgsToError {
		if bytes.Contains(b, []byte(marker)) {
			return 0, 0, merr
		}
	}

	sp.produced[msg.Topic] = append(sp.produced[msg.Topic], msg)

	return 0, int64(len(sp.produced[msg.Topic])), nil
}

func (sp *SyncProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	for _, m := range msgs {
		if _, _, err := sp.SendMessage(m); err != nil {
			return err
		}
	}

	return nil
}

func (sp *SyncProducer) Close() error {
	return nil
}

// Payloads returns the raw values published to topic, in order.
func (sp *SyncProducer) Payloads(topic string) [][]byte {
	sp.Lock()
	defer sp.Unlock()

	var out [][]byte
	for _, m := range sp.produced[topic] {
		b, err := m.Value.Encode()
		if err != nil {
			panic(err)
		}
		out = append(out, b)
	}

	return out
}

// Keys returns the message keys of everything published to topic.
func (sp *SyncProducer) Keys(topic string) []string {
	sp.Lock()
	defer sp.Unlock()

	var out []string
	for _, m := range sp.produced[topic] {
		if m.Key == nil {
			out = append(out, "")
			continue
		}
		b, err := m.Key.Encode()
		if err != nil {
			panic(err)
		}
		out = append(out, string(b))
	}

	return out
}
