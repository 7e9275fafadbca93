package gateway

import (
	"context"

	"emergency-service/pkg/consul"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProbe treats "the gateway has a passing instance in consul" as the
// connectivity signal. It implements dispatch.ConnectivityProbe.
type ConsulProbe struct {
	client      *consulapi.Client
	serviceName string
}

func NewConsulProbe(client *consulapi.Client, serviceName string) *ConsulProbe {
	return &ConsulProbe{
		client:      client,
		serviceName: serviceName,
	}
}

func (p *ConsulProbe) Online(ctx context.Context) bool {
	return consul.CheckPassing(p.client, p.serviceName)
}
