package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/strategy"
)

// DistributionKey selects the weight used to prorate an expense pool
type DistributionKey string

const (
	KeyArea   DistributionKey = "area"   // square meters
	KeyMEA    DistributionKey = "mea"    // Miteigentumsanteil (co-ownership share)
	KeyPerson DistributionKey = "person" // occupant head count
	KeyFixed  DistributionKey = "fixed"  // explicit fixed weights
)

// IsValid checks if the distribution key is valid
func (k DistributionKey) IsValid() bool {
	switch k {
	case KeyArea, KeyMEA, KeyPerson, KeyFixed:
		return true
	}
	return false
}

// String returns the string representation of DistributionKey
func (k DistributionKey) String() string {
	return string(k)
}

// Unit is one apartment/commercial unit participating in a settlement.
// A vacant unit still contributes its weight to the pool; its share is
// charged to the owner instead of a tenant.
type Unit struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Area     decimal.Decimal `json:"area"`
	MEA      decimal.Decimal `json:"mea"`
	Persons  int             `json:"persons"`
	Fixed    decimal.Decimal `json:"fixed"`
	Vacant   bool            `json:"vacant"`
	TenantID *uuid.UUID      `json:"tenant_id,omitempty"`
}

// weight returns the unit's weight under the given key
func (u Unit) weight(key DistributionKey) decimal.Decimal {
	switch key {
	case KeyArea:
		return u.Area
	case KeyMEA:
		return u.MEA
	case KeyPerson:
		return decimal.NewFromInt(int64(u.Persons))
	case KeyFixed:
		return u.Fixed
	default:
		return decimal.Zero
	}
}

// ChargedTo identifies who carries a distributed share
type ChargedTo string

const (
	ChargedToTenant ChargedTo = "tenant"
	ChargedToOwner  ChargedTo = "owner"
)

// Share is the prorated portion of an expense pool for one unit
type Share struct {
	UnitID    uuid.UUID       `json:"unit_id"`
	UnitName  string          `json:"unit_name"`
	Weight    decimal.Decimal `json:"weight"`
	Amount    decimal.Decimal `json:"amount"`
	ChargedTo ChargedTo       `json:"charged_to"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty"`
	// Residual marks the share that absorbed the rounding remainder
	Residual bool `json:"residual,omitempty"`
}

// Distribution is the complete outcome of prorating one expense pool.
// Invariant: the amounts of all shares sum to TotalExpense exactly.
type Distribution struct {
	Key          DistributionKey `json:"key"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalWeight  decimal.Decimal `json:"total_weight"`
	Shares       []Share         `json:"shares"`
	TenantTotal  decimal.Decimal `json:"tenant_total"`
	OwnerTotal   decimal.Decimal `json:"owner_total"`
}

// Distributor prorates an expense pool across units by a distribution
// key. It trusts its input set: filtering for allocability
// (istUmlagefaehig) happens upstream.
type Distributor struct {
	strategy.BaseStrategy
}

// NewDistributor creates a new settlement distributor
func NewDistributor() *Distributor {
	return &Distributor{
		BaseStrategy: strategy.NewBaseStrategy(
			"settlement_distribution",
			strategy.StrategyTypeDistribution,
			"prorates an expense pool across units by area, MEA, persons, or fixed weights",
		),
	}
}

// Distribute computes each unit's share of totalExpense. Independent cent
// rounding of the shares can drift from the total by a few cents, so the
// last unit with positive weight absorbs the residual, guaranteeing exact
// conservation. A trailing zero-weight unit owes nothing and must not be
// handed the drift.
func (d *Distributor) Distribute(totalExpense decimal.Decimal, units []Unit, key DistributionKey) (*Distribution, error) {
	if !key.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid distribution key %q", key)
	}
	if totalExpense.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION", "total expense cannot be negative")
	}
	if len(units) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "no units to distribute over")
	}

	totalWeight := decimal.Zero
	for _, u := range units {
		w := u.weight(key)
		if w.IsNegative() {
			return nil, shared.NewDomainErrorf("VALIDATION", "unit %s has negative weight", u.Name)
		}
		totalWeight = totalWeight.Add(w)
	}
	if totalWeight.IsZero() {
		return nil, shared.NewDomainErrorf("VALIDATION", "total weight under key %s is zero", key)
	}

	dist := &Distribution{
		Key:          key,
		TotalExpense: totalExpense.Round(2),
		TotalWeight:  totalWeight,
		Shares:       make([]Share, 0, len(units)),
		TenantTotal:  decimal.Zero,
		OwnerTotal:   decimal.Zero,
	}

	residualIdx := -1
	for i, u := range units {
		if u.weight(key).IsPositive() {
			residualIdx = i
		}
	}

	allocated := decimal.Zero
	for i := range units {
		if i == residualIdx {
			continue
		}
		allocated = allocated.Add(dist.TotalExpense.Mul(units[i].weight(key)).Div(totalWeight).Round(2))
	}

	for i, u := range units {
		w := u.weight(key)
		var amount decimal.Decimal
		if i == residualIdx {
			// last weighted unit absorbs the rounding residual
			amount = dist.TotalExpense.Sub(allocated)
		} else {
			amount = dist.TotalExpense.Mul(w).Div(totalWeight).Round(2)
		}

		share := Share{
			UnitID:   u.ID,
			UnitName: u.Name,
			Weight:   w,
			Amount:   amount,
			Residual: i == residualIdx,
		}
		if u.Vacant || u.TenantID == nil {
			share.ChargedTo = ChargedToOwner
			dist.OwnerTotal = dist.OwnerTotal.Add(amount)
		} else {
			share.ChargedTo = ChargedToTenant
			share.TenantID = u.TenantID
			dist.TenantTotal = dist.TenantTotal.Add(amount)
		}
		dist.Shares = append(dist.Shares, share)
	}

	return dist, nil
}
