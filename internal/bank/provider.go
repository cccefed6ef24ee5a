// Package bank defines the bank-provider port and its mock implementation.
// A provider hands the importer a fully materialized transaction batch; any
// slow network fetch belongs inside the provider, never in the importer.
package bank

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"financeflow/internal/core"
)

// AccountInfo describes a bank-side account as reported by a provider. Ref is
// the provider's identifier, matched against the local account number.
type AccountInfo struct {
	Ref            string
	Name           string
	BankName       string
	Currency       string
	OpeningBalance core.Money
}

// Provider is the port to an external bank API. Returned transactions carry
// the provider's external ID but no local account ID; the importer binds them
// to the owning account.
type Provider interface {
	Name() string
	Accounts(ctx context.Context) ([]AccountInfo, error)
	Transactions(ctx context.Context, accountRef string, daysBack int) ([]core.Transaction, error)
}

const (
	ProviderMock = "mock"
)

// NewProvider selects a provider by name. Only the mock provider is wired;
// the seam exists so a real API client can slot in without touching the
// importer.
func NewProvider(name string, r *rand.Rand, now func() time.Time) (Provider, error) {
	switch name {
	case ProviderMock:
		return NewMockProvider(r, now), nil
	default:
		return nil, fmt.Errorf("unknown bank provider %q", name)
	}
}
