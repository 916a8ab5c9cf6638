package reroute

import (
	"context"
	"net/http"

	"github.com/strato-io/strato/internal/zone"
	"github.com/strato-io/strato/internal/zoneclient"
)

// ClientDialer opens zoneclient sessions against child zones using the
// credentials stored in the zone record.
type ClientDialer struct {
	httpClient *http.Client
}

// NewClientDialer creates a dialer. httpClient may be nil, in which case
// each session uses the zoneclient default transport.
func NewClientDialer(httpClient *http.Client) *ClientDialer {
	return &ClientDialer{httpClient: httpClient}
}

// Dial builds a client for the zone and authenticates it. The returned
// session carries the zone-scoped auth token for the rest of the
// conversation.
func (d *ClientDialer) Dial(ctx context.Context, z zone.Zone) (Session, error) {
	var opts []zoneclient.Option
	if d.httpClient != nil {
		opts = append(opts, zoneclient.WithHTTPClient(d.httpClient))
	}
	client, err := zoneclient.New(z, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

var _ Dialer = (*ClientDialer)(nil)
var _ Session = (*zoneclient.Client)(nil)
