package hub

import (
	"sync"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/scan"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

// ConnectionState describes the producer held for one identity.
type ConnectionState struct {
	Connected           bool
	ConsecutiveFailures int
	LastStateChangeAt   time.Time
}

type producerFactory func(cred Credential) (sarama.SyncProducer, error)

// Client publishes scan events to the hub. Each identity gets its own
// authenticated producer, dialled on first use and dropped after a
// failed send so the next attempt starts from a fresh connection.
type Client struct {
	cfg     *config.Config
	factory producerFactory
	clock   func() time.Time

	mu     sync.Mutex
	conns  map[string]sarama.SyncProducer
	states map[string]*ConnectionState
}

func NewClient(cfg *config.Config) *Client {
	c := newClient(cfg)
	c.factory = func(cred Credential) (sarama.SyncProducer, error) {
		hosts := cred.Hosts
		if len(hosts) == 0 {
			hosts = cfg.HubHost
		}

		return sarama.NewSyncProducer(hosts, NewSaramaConfig(cfg, cred))
	}

	return c
}

func NewClientWithProducerFactory(cfg *config.Config, factory func(cred Credential) (sarama.SyncProducer, error)) *Client {
	c := newClient(cfg)
	c.factory = factory

	return c
}

func newClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		clock:  time.Now,
		conns:  map[string]sarama.SyncProducer{},
		states: map[string]*ConnectionState{},
	}
}

// Send publishes one payload on the identity's own connection. The
// message key is the identity id, which keeps each identity's events in
// order on the hub.
func (c *Client) Send(identityId string, rawCred string, p scan.HubPayload) error {
	cred, err := ParseCredential(rawCred)
	if err != nil {
		return err
	}

	value, err := p.Encode()
	if err != nil {
		return err
	}

	producer, err := c.producerFor(identityId, cred)
	if err != nil {
		c.recordFailure(identityId)

		return errors.Wrapf(err, "hub: connecting producer for identity %s", identityId)
	}

	partition, offset, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic: c.cfg.HubTopic,
		Key:   sarama.StringEncoder(identityId),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		c.dropProducer(identityId)
		c.recordFailure(identityId)

		return errors.Wrapf(err, "hub: producing scan event for identity %s", identityId)
	}

	c.recordSuccess(identityId)
	log.Logger.Debugf("produced scan event on the hub (topic: %s, partition: %d, offset: %d)", c.cfg.HubTopic, partition, offset)

	return nil
}

// State reports the connection bookkeeping for an identity. Identities
// that never attempted a send report a zero state.
func (c *Client) State(identityId string) ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.states[identityId]; ok {
		return *st
	}

	return ConnectionState{}
}

// ForceReconnect drops the identity's producer; the next Send dials a
// fresh one. It is not an error if no connection is held.
func (c *Client) ForceReconnect(identityId string) {
	c.dropProducer(identityId)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, p := range c.conns {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "hub: closing producer for identity %s", id)
		}
		delete(c.conns, id)
	}

	return firstErr
}

func (c *Client) producerFor(id string, cred Credential) (sarama.SyncProducer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.conns[id]; ok {
		return p, nil
	}

	log.Logger.Debugf("dialling the hub for identity %s", id)

	p, err := c.factory(cred)
	if err != nil {
		return nil, err
	}
	c.conns[id] = p

	return p, nil
}

func (c *Client) dropProducer(id string) {
	c.mu.Lock()
	p, ok := c.conns[id]
	delete(c.conns, id)
	if st, exists := c.states[id]; exists && st.Connected {
		st.Connected = false
		st.LastStateChangeAt = c.clock().UTC()
	}
	c.mu.Unlock()

	if ok {
		if err := p.Close(); err != nil {
			log.Logger.WithError(err).Debugf("error closing hub producer for identity %s", id)
		}
	}
}

func (c *Client) recordFailure(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.ensureState(id)
	st.ConsecutiveFailures++
	if st.Connected {
		st.Connected = false
		st.LastStateChangeAt = c.clock().UTC()
	}
}

func (c *Client) recordSuccess(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.ensureState(id)
	st.ConsecutiveFailures = 0
	if !st.Connected {
		st.Connected = true
		st.LastStateChangeAt = c.clock().UTC()
	}
}

func (c *Client) ensureState(id string) *ConnectionState {
	if st, ok := c.states[id]; ok {
		return st
	}

	st := &ConnectionState{}
	c.states[id] = st

	return st
}
