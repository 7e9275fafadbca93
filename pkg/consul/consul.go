package consul

import (
	"fmt"
	"os"
	"strconv"

	"emergency-service/config"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

type ConsulConn struct {
	logger    *zap.SugaredLogger
	cfg       *config.Config
	client    *consulapi.Client
	serviceID string
}

func NewConsulConn(logger *zap.SugaredLogger, cfg *config.Config) *ConsulConn {
	return &ConsulConn{
		logger: logger,
		cfg:    cfg,
	}
}

// Connect creates the consul client and registers this service instance.
func (c *ConsulConn) Connect() *consulapi.Client {
	consulCfg := consulapi.DefaultConfig()
	consulCfg.Address = c.cfg.ConsulAddr

	client, err := consulapi.NewClient(consulCfg)
	if err != nil {
		c.logger.Fatalf("Failed to create consul client: %v", err)
	}
	c.client = client

	hostname, _ := os.Hostname()
	port, err := strconv.Atoi(c.cfg.Port)
	if err != nil {
		port = 8080
	}

	c.serviceID = fmt.Sprintf("%s-%s-%d", c.cfg.ServiceName, hostname, port)

	registration := &consulapi.AgentServiceRegistration{
		ID:      c.serviceID,
		Name:    c.cfg.ServiceName,
		Port:    port,
		Address: hostname,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		c.logger.Fatalf("Failed to register service with consul: %v", err)
	}

	c.logger.Infof("Registered %s with consul as %s", c.cfg.ServiceName, c.serviceID)
	return client
}

func (c *ConsulConn) Deregister() {
	if c.client == nil {
		return
	}
	if err := c.client.Agent().ServiceDeregister(c.serviceID); err != nil {
		c.logger.Errorf("Failed to deregister %s: %v", c.serviceID, err)
	}
}

// ServiceAddress returns "host:port" of a healthy instance of name.
func ServiceAddress(client *consulapi.Client, name string) (string, error) {
	entries, _, err := client.Health().Service(name, "", true, nil)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%s has no passing instances in consul", name)
	}

	svc := entries[0].Service
	addr := svc.Address
	if addr == "" {
		addr = entries[0].Node.Address
	}
	return fmt.Sprintf("%s:%d", addr, svc.Port), nil
}

// CheckPassing reports whether name has at least one passing instance.
func CheckPassing(client *consulapi.Client, name string) bool {
	entries, _, err := client.Health().Service(name, "", true, nil)
	return err == nil && len(entries) > 0
}
