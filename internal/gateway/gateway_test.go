package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls int
}

func (s *stubProvider) CreateOrder(req CreateOrderRequest) (*CreateOrderResponse, error) {
	s.calls++
	return &CreateOrderResponse{Success: true}, nil
}

func TestRegistryServiceFor(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	stub := &stubProvider{}
	registry.Register("globalsim", stub)

	service, err := registry.ServiceFor("globalsim")
	require.NoError(t, err)

	resp, err := service.CreateOrder(CreateOrderRequest{PackageID: "gs-1"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, 1, stub.calls)
}

func TestRegistryUnknownSlug(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	service, err := registry.ServiceFor("nobody")
	require.Error(t, err)
	require.Nil(t, service)
}

func TestRegistryReplacesRegistration(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	old := &stubProvider{}
	replacement := &stubProvider{}
	registry.Register("globalsim", old)
	registry.Register("globalsim", replacement)

	service, err := registry.ServiceFor("globalsim")
	require.NoError(t, err)

	_, err = service.CreateOrder(CreateOrderRequest{})
	require.NoError(t, err)
	require.Zero(t, old.calls)
	require.Equal(t, 1, replacement.calls)
}

func TestSimulatedProviderAlwaysSucceeds(t *testing.T) {
	provider := &SimulatedProvider{
		Slug:        "testsim",
		Name:        "TestSim",
		MinLatency:  0,
		MaxLatency:  1,
		SuccessRate: 1.0,
		SmdpAddress: "smdp.test.example",
	}

	resp, err := provider.CreateOrder(CreateOrderRequest{PackageID: "ts-1", Quantity: 1})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.True(t, strings.HasPrefix(resp.ICCID, "8944"))
	require.Len(t, resp.ICCID, 18)
	require.True(t, strings.HasPrefix(resp.QRCode, "LPA:1$smdp.test.example$"))
	require.Equal(t, "smdp.test.example", resp.SmdpAddress)
	require.NotEmpty(t, resp.ProviderOrderID)
	require.NotEmpty(t, resp.ActivationCode)
}

func TestSimulatedProviderAlwaysFails(t *testing.T) {
	provider := &SimulatedProvider{
		Slug:        "brokensim",
		Name:        "BrokenSim",
		MinLatency:  0,
		MaxLatency:  1,
		SuccessRate: 0,
	}

	resp, err := provider.CreateOrder(CreateOrderRequest{PackageID: "bs-1", Quantity: 1})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Contains(t, resp.ErrorMessage, "brokensim")
}

func TestRegisterSimulatedProviders(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	RegisterSimulatedProviders(registry)

	for _, provider := range DefaultSimulatedProviders {
		service, err := registry.ServiceFor(provider.Slug)
		require.NoError(t, err)
		require.NotNil(t, service)
	}
}
