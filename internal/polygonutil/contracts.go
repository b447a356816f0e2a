package polygonutil

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	orderconfig "github.com/polymarket/go-order-utils/pkg/config"
)

// Contracts is the subset of exchange deployments the trading bot touches.
type Contracts struct {
	ChainID         int64
	Exchange        common.Address
	NegRiskExchange common.Address
	NegRiskAdapter  common.Address
	Collateral      common.Address
	Conditional     common.Address
}

func ContractsFor(chainID int64) (Contracts, error) {
	c, err := orderconfig.GetContracts(chainID)
	if err != nil {
		return Contracts{}, fmt.Errorf("chain %d: %w", chainID, err)
	}
	return Contracts{
		ChainID:         chainID,
		Exchange:        c.Exchange,
		NegRiskExchange: c.NegRiskExchange,
		NegRiskAdapter:  c.NegRiskAdapter,
		Collateral:      c.Collateral,
		Conditional:     c.Conditional,
	}, nil
}

// Spenders lists the contracts that need a collateral allowance for the
// chosen market type.
func (c Contracts) Spenders(negRisk bool) []common.Address {
	if negRisk {
		return []common.Address{c.NegRiskExchange, c.NegRiskAdapter}
	}
	return []common.Address{c.Exchange}
}
