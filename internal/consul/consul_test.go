package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent records the agent API calls the package makes.
type fakeAgent struct {
	mu           sync.Mutex
	registered   *consulapi.AgentServiceRegistration
	deregistered string
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/v1/agent/service/register":
		var reg consulapi.AgentServiceRegistration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.registered = &reg
	case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		f.deregistered = strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
	case r.URL.Path == "/v1/health/service/shop-service":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Node":{"Address":"10.0.0.9"},"Service":{"ID":"shop-1","Service":"shop-service","Address":"","Port":8080}}]`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*consulapi.Client, *fakeAgent) {
	t.Helper()
	agent := &fakeAgent{}
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return client, agent
}

func TestRegisterAndDeregister(t *testing.T) {
	client, agent := newTestClient(t)

	err := RegisterService(client, Registration{
		ID: "shop-1", Name: "shop-service", Host: "10.0.0.5", Port: 8080,
		HealthURL: "http://10.0.0.5:8080/ping",
	})
	require.NoError(t, err)
	require.NotNil(t, agent.registered)
	assert.Equal(t, "shop-1", agent.registered.ID)
	assert.Equal(t, 8080, agent.registered.Port)
	require.NotNil(t, agent.registered.Check)
	assert.Equal(t, "http://10.0.0.5:8080/ping", agent.registered.Check.HTTP)

	require.NoError(t, Deregister(client, "shop-1"))
	assert.Equal(t, "shop-1", agent.deregistered)
}

func TestRegisterService_RequiresIdentity(t *testing.T) {
	client, agent := newTestClient(t)
	assert.Error(t, RegisterService(client, Registration{Name: "shop-service"}))
	assert.Nil(t, agent.registered)
}

func TestGetServiceAddress(t *testing.T) {
	client, _ := newTestClient(t)

	addr, err := GetServiceAddress(client, "shop-service")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:8080", addr)

	_, err = GetServiceAddress(client, "missing")
	assert.Error(t, err)
}
