package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
)

// Reliable decorates a DataStore with at-least-once write delivery. A failed
// write is queued in memory, spilled to an append-only msgpack journal, and
// retried on the next Drain. The in-memory ledger stays authoritative for the
// run either way; the journal only protects already-attempted writes from
// being lost across restarts.
type Reliable struct {
	inner       DataStore
	portfolio   string
	journalPath string

	mu    sync.Mutex
	queue []journalRecord

	log zerolog.Logger
}

type journalRecord struct {
	Op      string    `msgpack:"op"`
	At      time.Time `msgpack:"at"`
	Payload []byte    `msgpack:"payload"`
}

const (
	opWriteOrder    = "write_order"
	opWritePosition = "write_position"
	opWriteSummary  = "write_summary"
)

// NewReliable wraps a data store with the retry queue
func NewReliable(inner DataStore, portfolio, journalPath string, log zerolog.Logger) *Reliable {
	return &Reliable{
		inner:       inner,
		portfolio:   portfolio,
		journalPath: journalPath,
		log:         log.With().Str("component", "store_retry").Logger(),
	}
}

// PortfolioExists delegates to the inner store
func (r *Reliable) PortfolioExists(name string) (bool, error) {
	return r.inner.PortfolioExists(name)
}

// LoadPortfolio delegates to the inner store
func (r *Reliable) LoadPortfolio(name string) (*ledger.Snapshot, error) {
	return r.inner.LoadPortfolio(name)
}

// HistoricalPrices delegates to the inner store
func (r *Reliable) HistoricalPrices(ticker string, earliest time.Time) ([]domain.DailyClose, error) {
	return r.inner.HistoricalPrices(ticker, earliest)
}

// WriteHistoricalPrice delegates to the inner store; backfill retries itself
// on the next refresh cycle, so a failed price write is not journaled.
func (r *Reliable) WriteHistoricalPrice(ticker string, dc domain.DailyClose) error {
	return r.inner.WriteHistoricalPrice(ticker, dc)
}

// WritePortfolioSummary writes the summary, queueing it on failure
func (r *Reliable) WritePortfolioSummary(snap ledger.Snapshot) error {
	err := r.inner.WritePortfolioSummary(snap)
	if err != nil {
		r.enqueueSummary(snap, err)
	}
	return nil
}

// WriteOrder writes the order, queueing the row on failure
func (r *Reliable) WriteOrder(o *domain.Order) error {
	err := r.inner.WriteOrder(o)
	if err != nil {
		r.enqueueOrder(o, err)
	}
	return nil
}

// CloseOrder persists the order's terminal state, queueing the row on failure
func (r *Reliable) CloseOrder(o *domain.Order) error {
	err := r.inner.CloseOrder(o)
	if err != nil {
		r.enqueueOrder(o, err)
	}
	return nil
}

// WritePosition writes the position, queueing the row on failure
func (r *Reliable) WritePosition(p *domain.Position) error {
	err := r.inner.WritePosition(p)
	if err != nil {
		r.enqueuePosition(p, err)
	}
	return nil
}

// ClosePosition persists the position's terminal state, queueing on failure
func (r *Reliable) ClosePosition(p *domain.Position) error {
	err := r.inner.ClosePosition(p)
	if err != nil {
		r.enqueuePosition(p, err)
	}
	return nil
}

// Pending returns the number of writes waiting for retry
func (r *Reliable) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Drain retries every queued write. Writes that fail again stay queued.
func (r *Reliable) Drain() {
	r.mu.Lock()
	pending := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, rec := range pending {
		if err := r.replay(rec); err != nil {
			r.log.Warn().Err(err).Str("op", rec.Op).Msg("Retry failed, write re-queued")
			r.mu.Lock()
			r.queue = append(r.queue, rec)
			r.mu.Unlock()
		}
	}
}

func (r *Reliable) replay(rec journalRecord) error {
	switch rec.Op {
	case opWriteOrder:
		var row orderRecord
		if err := msgpack.Unmarshal(rec.Payload, &row); err != nil {
			return fmt.Errorf("failed to decode journaled order: %w", err)
		}
		o, err := row.toOrder()
		if err != nil {
			return err
		}
		return r.inner.WriteOrder(o)
	case opWritePosition:
		var row positionRecord
		if err := msgpack.Unmarshal(rec.Payload, &row); err != nil {
			return fmt.Errorf("failed to decode journaled position: %w", err)
		}
		p, err := row.toPosition()
		if err != nil {
			return err
		}
		return r.inner.WritePosition(p)
	case opWriteSummary:
		var row summaryRecord
		if err := msgpack.Unmarshal(rec.Payload, &row); err != nil {
			return fmt.Errorf("failed to decode journaled summary: %w", err)
		}
		snap, err := row.toSnapshot()
		if err != nil {
			return err
		}
		return r.inner.WritePortfolioSummary(snap)
	default:
		return fmt.Errorf("unknown journal op: %s", rec.Op)
	}
}

type summaryRecord struct {
	Name          string `msgpack:"name"`
	FreeCash      string `msgpack:"free_cash"`
	ReservedCash  string `msgpack:"reserved_cash"`
	NAV           string `msgpack:"nav"`
	OpenOrders    int    `msgpack:"open_orders"`
	OpenPositions int    `msgpack:"open_positions"`
	TakenAt       string `msgpack:"taken_at"`
}

func (sr summaryRecord) toSnapshot() (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	var err error
	snap.Name = sr.Name
	if snap.FreeCash, err = parseDecimal(sr.FreeCash); err != nil {
		return snap, err
	}
	if snap.ReservedCash, err = parseDecimal(sr.ReservedCash); err != nil {
		return snap, err
	}
	if snap.NetAssetValue, err = parseDecimal(sr.NAV); err != nil {
		return snap, err
	}
	if snap.TakenAt, err = parseTime(sr.TakenAt, time.RFC3339Nano); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *Reliable) enqueueOrder(o *domain.Order, cause error) {
	r.enqueue(opWriteOrder, orderToRecord(r.portfolio, o), cause)
}

func (r *Reliable) enqueuePosition(p *domain.Position, cause error) {
	r.enqueue(opWritePosition, positionToRecord(r.portfolio, p), cause)
}

func (r *Reliable) enqueueSummary(snap ledger.Snapshot, cause error) {
	r.enqueue(opWriteSummary, summaryRecord{
		Name:          snap.Name,
		FreeCash:      snap.FreeCash.String(),
		ReservedCash:  snap.ReservedCash.String(),
		NAV:           snap.NetAssetValue.String(),
		OpenOrders:    len(snap.OpenOrders),
		OpenPositions: len(snap.OpenPositions),
		TakenAt:       snap.TakenAt.Format(time.RFC3339Nano),
	}, cause)
}

func (r *Reliable) enqueue(op string, row interface{}, cause error) {
	payload, err := msgpack.Marshal(row)
	if err != nil {
		r.log.Error().Err(err).Str("op", op).Msg("Cannot encode failed write, state may be lost")
		return
	}
	rec := journalRecord{Op: op, At: time.Now(), Payload: payload}

	r.mu.Lock()
	r.queue = append(r.queue, rec)
	r.mu.Unlock()

	r.spill(rec)
	r.log.Error().Err(cause).Str("op", op).Msg("Write failed, queued for retry")
}

// spill appends the record to the durable journal so a crash does not drop
// the queued write.
func (r *Reliable) spill(rec journalRecord) {
	if r.journalPath == "" {
		return
	}
	f, err := os.OpenFile(r.journalPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.log.Error().Err(err).Msg("Cannot open write journal")
		return
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(rec); err != nil {
		r.log.Error().Err(err).Msg("Cannot append to write journal")
	}
}

// LoadJournal reads journaled writes from a previous run into the retry
// queue and truncates the journal.
func (r *Reliable) LoadJournal() error {
	if r.journalPath == "" {
		return nil
	}
	f, err := os.Open(r.journalPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open write journal: %w", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	var loaded int
	for {
		var rec journalRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		r.mu.Lock()
		r.queue = append(r.queue, rec)
		r.mu.Unlock()
		loaded++
	}

	if loaded > 0 {
		r.log.Info().Int("count", loaded).Msg("Loaded journaled writes from previous run")
	}
	return os.Truncate(r.journalPath, 0)
}
