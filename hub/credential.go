package hub

import (
	"strings"

	"github.com/pkg/errors"
)

// Credential is the connection material issued per identity by the
// provisioning service. Everywhere else it travels as an opaque string;
// only this package understands its shape.
type Credential struct {
	Hosts           []string
	IdentityId      string
	SharedAccessKey string
}

// ParseCredential decodes the descriptor issued at provisioning time,
// e.g. "hosts=hub1:9092,hub2:9092;identityId=abc;sharedAccessKey=s3cr3t".
// Unknown segments are ignored so newer provisioners can add fields.
func ParseCredential(raw string) (Credential, error) {
	var c Credential

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Credential{}, errors.Errorf("hub: malformed credential segment %q", part)
		}

		switch kv[0] {
		case "hosts":
			for _, h := range strings.Split(kv[1], ",") {
				if h = strings.TrimSpace(h); h != "" {
					c.Hosts = append(c.Hosts, h)
				}
			}
		case "identityId":
			c.IdentityId = kv[1]
		case "sharedAccessKey":
			c.SharedAccessKey = kv[1]
		}
	}

	if c.IdentityId == "" || c.SharedAccessKey == "" {
		return Credential{}, errors.New("hub: the credential is missing identityId or sharedAccessKey")
	}

	return c, nil
}

func (c Credential) String() string {
	var parts []string
	if len(c.Hosts) > 0 {
		parts = append(parts, "hosts="+strings.Join(c.Hosts, ","))
	}
	parts = append(parts, "identityId="+c.IdentityId, "sharedAccessKey="+c.SharedAccessKey)

	return strings.Join(parts, ";")
}
