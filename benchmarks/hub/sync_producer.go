//go:build benchmarks
// +build benchmarks

package hub

import (
	"sync"

	"github.com/Shopify/sarama"
)

// SyncProducer counts sends without a broker behind it, so the benchmark
// measures the relay itself and not the network.
type SyncProducer struct {
	sync.RWMutex
	msgsPublished int
}

func NewSyncProducer() *SyncProducer {
	return &SyncProducer{}
}

func (sp *SyncProducer) GetMessagesPublishedCount() int {
	sp.RLock()
	defer sp.RUnlock()
	return sp.msgsPublished
}

func (sp *SyncProducer) ResetMessagesPublishedCount() {
	sp.Lock()
	defer sp.Unlock()
	sp.msgsPublished = 0
}

func (sp *SyncProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	sp.Lock()
	defer sp.Unlock()
	sp.msgsPublished++

	return 0, int64(sp.msgsPublished), nil
}

func (sp *SyncProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	sp.Lock()
	defer sp.Unlock()
	sp.msgsPublished += len(msgs)

	return nil
}

func (sp *SyncProducer) Close() error {
	return nil
}
