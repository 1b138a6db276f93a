package bboardtest

import (
	"context"
	"errors"
	"testing"

	"github.com/blockberries/bboard"
)

func TestComplianceSuite_Local(t *testing.T) {
	RunComplianceSuite(t, LocalPair)
}

func TestMockConnector_Defaults(t *testing.T) {
	m := &MockConnector{}
	if m.APIVersion() != DefaultAPIVersion {
		t.Errorf("expected version %s, got %s", DefaultAPIVersion, m.APIVersion())
	}
	enabled, err := m.IsEnabled(context.Background())
	if err != nil || !enabled {
		t.Errorf("expected enabled connector, got %v, %v", enabled, err)
	}
	w, err := m.Enable(context.Background())
	if err != nil || w == nil {
		t.Fatalf("expected a wallet, got %v, %v", w, err)
	}
	if m.IsEnabledCalls.Load() != 1 || m.EnableCalls.Load() != 1 {
		t.Error("expected call counters to be updated")
	}
}

func TestMockConnector_CustomHandler(t *testing.T) {
	refused := errors.New("refused")
	m := &MockConnector{
		EnableFn: func(context.Context) (bboard.WalletAPI, error) { return nil, refused },
	}
	if _, err := m.Enable(context.Background()); !errors.Is(err, refused) {
		t.Errorf("expected custom error, got %v", err)
	}
}

func TestMockLocator_Misses(t *testing.T) {
	l := &MockLocator{Connector: &MockConnector{}, Misses: 2}
	for i := 0; i < 2; i++ {
		if l.Locate(context.Background()) != nil {
			t.Fatalf("call %d: expected a miss", i+1)
		}
	}
	if l.Locate(context.Background()) == nil {
		t.Error("expected the connector after the misses")
	}
}
