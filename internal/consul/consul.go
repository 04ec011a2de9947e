// Package consul registers the service with a Consul agent.
package consul

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

func NewClient(addr string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return client, nil
}

// Registration describes the instance being announced. HealthURL is polled
// by the agent; the instance is deregistered after a minute of failures.
type Registration struct {
	ID        string
	Name      string
	Host      string
	Port      int
	Tags      []string
	HealthURL string
}

func RegisterService(client *consulapi.Client, r Registration) error {
	if r.ID == "" || r.Name == "" {
		return errors.New("service id and name are required")
	}
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.ID,
		Name:    r.Name,
		Address: r.Host,
		Port:    r.Port,
		Tags:    r.Tags,
	}
	if r.HealthURL != "" {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           r.HealthURL,
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		}
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("registering %s with consul: %w", r.ID, err)
	}
	return nil
}

func Deregister(client *consulapi.Client, id string) error {
	if err := client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("deregistering %s from consul: %w", id, err)
	}
	return nil
}

// GetServiceAddress returns host:port of a passing instance of name.
func GetServiceAddress(client *consulapi.Client, name string) (string, error) {
	entries, _, err := client.Health().Service(name, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("looking up %s in consul: %w", name, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instance of %s", name)
	}
	svc := entries[0].Service
	host := svc.Address
	if host == "" {
		host = entries[0].Node.Address
	}
	return net.JoinHostPort(host, strconv.Itoa(svc.Port)), nil
}
