package hub

import (
	"crypto/tls"
	"time"

	"fieldscan/scanner-relay/config"

	"github.com/Shopify/sarama"
)

// NewSaramaConfig builds the producer configuration for one identity.
// The hub authenticates every connection as the identity itself, using
// the shared access key issued at provisioning time.
func NewSaramaConfig(cfg *config.Config, cred Credential) *sarama.Config {
	sc := sarama.NewConfig()

	sc.ClientID = cred.IdentityId
	sc.Version = sarama.V2_4_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.Compression = sarama.CompressionGZIP
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Retry.Max = cfg.HubSendAttempts

	// The delivery worker owns retries and backoff, so a dead hub must
	// surface quickly instead of blocking inside the client.
	sc.Net.DialTimeout = 10 * time.Second
	sc.Metadata.Retry.Max = 2
	sc.Metadata.Retry.Backoff = 2 * time.Second

	sc.Net.SASL.Enable = true
	sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	sc.Net.SASL.User = cred.IdentityId
	sc.Net.SASL.Password = cred.SharedAccessKey

	if cfg.TLSEnable {
		sc.Net.TLS.Enable = true
		// #nosec G402
		// we suppress this in gosec because it believes that InsecureSkipVerify is true, but it depends on the
		// value in environment configuration
		sc.Net.TLS.Config = &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerifyPeer}
	}

	return sc
}
