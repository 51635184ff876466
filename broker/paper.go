package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Paper is an in-memory broker for paper trading and tests. Orders fill
// immediately at the mark supplied through SetMark.
type Paper struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]float64
	marks     map[string]float64
	orderLog  []string
}

func NewPaper(initialCash float64) *Paper {
	return &Paper{
		cash:      initialCash,
		positions: make(map[string]float64),
		marks:     make(map[string]float64),
	}
}

// SetMark updates the price the next fill for an instrument executes at.
func (p *Paper) SetMark(instrument string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[instrument] = price
}

func (p *Paper) GetCash(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, nil
}

func (p *Paper) GetOpenPositions(context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.positions))
	for k, v := range p.positions {
		out[k] = v
	}
	return out, nil
}

func (p *Paper) SubmitMarketOrder(_ context.Context, o Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark := p.marks[o.Instrument]
	if mark <= 0 {
		return "", fmt.Errorf("broker: no mark for %s", o.Instrument)
	}

	qty := o.Quantity
	if qty <= 0 && o.Notional > 0 {
		qty = o.Notional / mark
	}
	if qty <= 0 {
		return "", fmt.Errorf("broker: empty order for %s", o.Instrument)
	}

	switch o.Side {
	case Buy:
		cost := qty * mark
		if cost > p.cash {
			return "", fmt.Errorf("broker: insufficient cash for %s (%.2f > %.2f)", o.Instrument, cost, p.cash)
		}
		p.cash -= cost
		p.positions[o.Instrument] += qty
	case Sell:
		held := p.positions[o.Instrument]
		if qty > held {
			return "", fmt.Errorf("broker: sell %f exceeds held %f for %s", qty, held, o.Instrument)
		}
		p.cash += qty * mark
		if qty == held {
			delete(p.positions, o.Instrument)
		} else {
			p.positions[o.Instrument] = held - qty
		}
	default:
		return "", fmt.Errorf("broker: unknown side %q", o.Side)
	}

	id := uuid.NewString()
	p.orderLog = append(p.orderLog, id)
	return id, nil
}

func (p *Paper) ClosePosition(ctx context.Context, instrument string) error {
	p.mu.Lock()
	qty := p.positions[instrument]
	p.mu.Unlock()
	if qty <= 0 {
		return nil
	}
	_, err := p.SubmitMarketOrder(ctx, Order{Instrument: instrument, Side: Sell, Quantity: qty})
	return err
}
