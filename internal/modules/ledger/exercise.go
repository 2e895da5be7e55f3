package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// SettlementResult reports the positions touched by an exercise so they can
// be persisted by the caller.
type SettlementResult struct {
	Created []*domain.Position
	Updated []*domain.Position
}

var hundred = decimal.NewFromInt(100)

// ExerciseOption settles an in-the-money option position at expiry,
// dispatching to the exercise algorithm for its side and type. The option
// position ends CLOSED with reserved cash decremented by its claim.
func (l *Ledger) ExerciseOption(p *domain.Position, underlyingTick decimal.Decimal) (SettlementResult, error) {
	if !p.IsOpen || !p.Security.IsOption() {
		return SettlementResult{}, fmt.Errorf("position %d is not an open option position", p.ID)
	}

	var (
		res SettlementResult
		err error
	)
	switch {
	case p.Security.Type == domain.SecurityTypePut && p.Short:
		res, err = l.exerciseShortPut(p, underlyingTick)
	case p.Security.Type == domain.SecurityTypeCall && p.Short:
		res, err = l.assignShortCall(p, underlyingTick)
	case p.Security.Type == domain.SecurityTypePut && !p.Short:
		res, err = l.exerciseLongPut(p, underlyingTick)
	default:
		res, err = l.exerciseLongCall(p, underlyingTick)
	}
	if err != nil {
		return SettlementResult{}, err
	}

	if err := p.Close(decimal.Zero, l.now()); err != nil {
		return SettlementResult{}, err
	}
	l.log.Info().
		Int64("position_id", p.ID).
		Str("ticker", p.Security.Ticker).
		Str("underlying_tick", underlyingTick.String()).
		Msg("Option exercised")
	return res, nil
}

// ExpireOptionPosition closes an out-of-the-money option at a zero settlement
// price, releasing its claim (nonzero only for short puts) back to free cash.
func (l *Ledger) ExpireOptionPosition(p *domain.Position) error {
	if !p.IsOpen || !p.Security.IsOption() {
		return fmt.Errorf("position %d is not an open option position", p.ID)
	}
	l.freeCash = l.freeCash.Add(p.ClaimAgainstCash)
	l.reservedCash = l.reservedCash.Sub(p.ClaimAgainstCash)
	if err := p.Close(decimal.Zero, l.now()); err != nil {
		return err
	}
	l.log.Info().
		Int64("position_id", p.ID).
		Str("ticker", p.Security.Ticker).
		Str("claim_released", p.ClaimAgainstCash.String()).
		Msg("Option expired worthless")
	return nil
}

// exerciseShortPut handles assignment on a written put: the reserved claim
// pays for quantity x 100 shares at the strike, which become a new long stock
// position marked at the current underlying tick. Free cash does not move.
func (l *Ledger) exerciseShortPut(p *domain.Position, tick decimal.Decimal) (SettlementResult, error) {
	stock, err := domain.NewStock(p.Security.Underlying)
	if err != nil {
		return SettlementResult{}, err
	}
	shares := p.Quantity * 100
	pos, err := domain.NewPosition(l.ids.Next(), 0, stock, false, shares, p.Security.Strike, l.now())
	if err != nil {
		return SettlementResult{}, fmt.Errorf("failed to seed assigned stock position: %w", err)
	}
	pos.MarkToMarket(tick)

	l.reservedCash = l.reservedCash.Sub(p.ClaimAgainstCash)
	l.positions = append(l.positions, pos)
	return SettlementResult{Created: []*domain.Position{pos}}, nil
}

// assignShortCall delivers 100 shares per contract at the strike. Existing
// long stock is delivered first, lowest cost basis preferred; with nothing
// deliverable the shares are bought at the market tick and delivered at the
// strike. That buy is the uncollateralized short-call exposure and can drive
// free cash negative.
func (l *Ledger) assignShortCall(p *domain.Position, tick decimal.Decimal) (SettlementResult, error) {
	return l.deliverAtStrike(p, tick)
}

// exerciseLongPut sells quantity x 100 shares at the strike, delivering held
// stock first and buying at market when none is held. Symmetric to short-call
// assignment.
func (l *Ledger) exerciseLongPut(p *domain.Position, tick decimal.Decimal) (SettlementResult, error) {
	return l.deliverAtStrike(p, tick)
}

// exerciseLongCall takes delivery: a new long stock position of quantity x
// 100 shares at the strike, debiting free cash by the strike-based cost basis.
func (l *Ledger) exerciseLongCall(p *domain.Position, tick decimal.Decimal) (SettlementResult, error) {
	stock, err := domain.NewStock(p.Security.Underlying)
	if err != nil {
		return SettlementResult{}, err
	}
	shares := p.Quantity * 100
	pos, err := domain.NewPosition(l.ids.Next(), 0, stock, false, shares, p.Security.Strike, l.now())
	if err != nil {
		return SettlementResult{}, fmt.Errorf("failed to seed exercised stock position: %w", err)
	}
	pos.MarkToMarket(tick)

	l.freeCash = l.freeCash.Sub(pos.CostBasis)
	l.positions = append(l.positions, pos)
	return SettlementResult{Created: []*domain.Position{pos}}, nil
}

func (l *Ledger) deliverAtStrike(p *domain.Position, tick decimal.Decimal) (SettlementResult, error) {
	var res SettlementResult
	strikeProceeds := p.Security.Strike.Mul(hundred)
	touched := make(map[int64]bool)

	for c := int64(0); c < p.Quantity; c++ {
		donor := l.lowestBasisLongStock(p.Security.Underlying)
		if donor != nil {
			if err := donor.ReduceQuantity(100); err != nil {
				return SettlementResult{}, err
			}
			if donor.Quantity == 0 {
				if err := donor.Close(p.Security.Strike, l.now()); err != nil {
					return SettlementResult{}, err
				}
			}
			if !touched[donor.ID] {
				touched[donor.ID] = true
				res.Updated = append(res.Updated, donor)
			}
		} else {
			// No deliverable shares: buy at market, deliver at strike
			l.freeCash = l.freeCash.Sub(tick.Mul(hundred))
		}
		l.freeCash = l.freeCash.Add(strikeProceeds)
	}
	return res, nil
}

// lowestBasisLongStock finds the open long stock position on a ticker with at
// least 100 shares and the lowest per-share open price. Lots are ranked per
// share, not by total lot basis, so lot size never affects donor selection.
func (l *Ledger) lowestBasisLongStock(ticker string) *domain.Position {
	var best *domain.Position
	for _, p := range l.positions {
		if !p.IsOpen || p.Short || p.Security.Type != domain.SecurityTypeStock {
			continue
		}
		if p.Security.Ticker != ticker || p.Quantity < 100 {
			continue
		}
		if best == nil || p.PriceAtOpen.LessThan(best.PriceAtOpen) {
			best = p
		}
	}
	return best
}
