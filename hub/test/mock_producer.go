package test

import (
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/go-test/deep"
)

type MockSyncProducer struct {
	producedMessages map[string][]*sarama.ProducerMessage
	err              error
	closed           bool
}

func NewMockSyncProducer() *MockSyncProducer {
	return &MockSyncProducer{
		producedMessages: map[string][]*sarama.ProducerMessage{},
	}
}

func (m *MockSyncProducer) ReturnErrors(err error) {
	m.err = err
}

func (m *MockSyncProducer) MessageWasProduced(topic string, exp *sarama.ProducerMessage) error {
	if _, ok := m.producedMessages[topic]; !ok {
		return fmt.Errorf("0 messages produced for the %s topic", topic)
	}

	for _, msg := range m.producedMessages[topic] {
		if diff := deep.Equal(exp, msg); diff == nil {
			return nil
		}
	}
	return fmt.Errorf("no message published in topic %s that matches provided message %#v", topic, exp)
}

func (m *MockSyncProducer) ProducedCount(topic string) int {
	return len(m.producedMessages[topic])
}

func (m *MockSyncProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	if m.err != nil {
		return 0, 0, m.err
	}

	m.producedMessages[msg.Topic] = append(m.producedMessages[msg.Topic], msg)

	return 0, 0, nil
}

func (m *MockSyncProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	return nil
}

func (m *MockSyncProducer) Close() error {
	m.closed = true
	return nil
}

func (m *MockSyncProducer) Closed() bool {
	return m.closed
}
