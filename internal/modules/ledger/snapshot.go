package ledger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// Snapshot is the persistable view of the ledger: cash figures plus the open
// orders and positions. Closed entities live only in the data store.
type Snapshot struct {
	Name          string
	FreeCash      decimal.Decimal
	ReservedCash  decimal.Decimal
	NetAssetValue decimal.Decimal
	TakenAt       time.Time
	OpenOrders    []*domain.Order
	OpenPositions []*domain.Position
}

// Snapshot captures the current ledger state
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Name:          l.name,
		FreeCash:      l.freeCash,
		ReservedCash:  l.reservedCash,
		NetAssetValue: l.NetAssetValue(),
		TakenAt:       l.now(),
		OpenOrders:    l.OpenOrders(),
		OpenPositions: l.OpenPositions(),
	}
}

// Restore rebuilds a ledger from a persisted snapshot. Reserved cash must
// match the open claims or the snapshot is rejected.
func Restore(snap Snapshot, ids *domain.TxIDGenerator, log zerolog.Logger) (*Ledger, error) {
	claims := decimal.Zero
	for _, o := range snap.OpenOrders {
		if !o.IsOpen {
			return nil, fmt.Errorf("snapshot contains closed order %d", o.ID)
		}
		claims = claims.Add(o.ClaimAgainstCash)
	}
	for _, p := range snap.OpenPositions {
		if !p.IsOpen {
			return nil, fmt.Errorf("snapshot contains closed position %d", p.ID)
		}
		claims = claims.Add(p.ClaimAgainstCash)
	}
	if !claims.Equal(snap.ReservedCash) {
		return nil, fmt.Errorf("snapshot reserved cash %s does not match open claims %s", snap.ReservedCash, claims)
	}

	l := &Ledger{
		name:         snap.Name,
		freeCash:     snap.FreeCash,
		reservedCash: snap.ReservedCash,
		orders:       append([]*domain.Order(nil), snap.OpenOrders...),
		positions:    append([]*domain.Position(nil), snap.OpenPositions...),
		ids:          ids,
		now:          time.Now,
		log:          log.With().Str("component", "ledger").Str("portfolio", snap.Name).Logger(),
	}
	return l, nil
}
