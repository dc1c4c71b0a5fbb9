package sim

import (
	"fmt"
	"time"

	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

// Side is the direction of a position
type Side string

const (
	Flat  Side = "flat"
	Long  Side = "long"
	Short Side = "short"
)

// Trade is an immutable record emitted when a position closes
type Trade struct {
	EntryTime    time.Time `json:"entry_time"`
	ExitTime     time.Time `json:"exit_time"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	PnL          float64   `json:"pnl"`
	EntryBalance float64   `json:"entry_balance"`
	ExitBalance  float64   `json:"exit_balance"`
	EntryPoints  float64   `json:"entry_points"`
}

// Position is the live simulation state for one instrument
type Position struct {
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`
	EntryPoints  float64   `json:"entry_points"`
	EntryBalance float64   `json:"entry_balance"`
}

// Config controls the simulator
type Config struct {
	Leverage       float64 `yaml:"leverage"`
	InitialBalance float64 `yaml:"initial_balance"`
	ExitThreshold  float64 `yaml:"exit_threshold"`
}

// DefaultConfig returns leverage 1, balance 100 and exit threshold 0.6
func DefaultConfig() Config {
	return Config{
		Leverage:       1,
		InitialBalance: 100,
		ExitThreshold:  0.6,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %v", c.Leverage)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %v", c.InitialBalance)
	}
	return nil
}

// Result is the outcome of one simulated run.
// Open is informational only: a position still open at the last bar is
// never added to Trades and never affects FinalBalance.
type Result struct {
	Trades         []Trade   `json:"trades"`
	FinalBalance   float64   `json:"final_balance"`
	HighestBalance float64   `json:"highest_balance"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	MarginCalled   bool      `json:"margin_called"`
	Open           *Position `json:"open,omitempty"`
}

// Simulator replays a signal stream bar by bar with a single capital pool
type Simulator struct {
	config Config
}

// NewSimulator validates config and returns a Simulator
func NewSimulator(config Config) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}
	return &Simulator{config: config}, nil
}

func (s *Simulator) Config() Config {
	return s.config
}

// Run walks the bars in order. A bar that closes a position never opens a
// new one. Once the balance reaches zero no further entries are taken.
func (s *Simulator) Run(bars market.Bars, stream signals.Stream) (Result, error) {
	if len(stream.Points) != len(bars) || len(stream.Long) != len(bars) || len(stream.Short) != len(bars) {
		return Result{}, fmt.Errorf("stream length (points=%d long=%d short=%d) does not match %d bars",
			len(stream.Points), len(stream.Long), len(stream.Short), len(bars))
	}
	for i, bar := range bars {
		if err := bar.Check(); err != nil {
			return Result{}, fmt.Errorf("bar %d: %w", i, err)
		}
	}

	st := state{
		leverage: s.config.Leverage,
		exitAt:   s.config.ExitThreshold,
		balance:  s.config.InitialBalance,
		highest:  s.config.InitialBalance,
		pos:      Position{Side: Flat},
	}
	for i, bar := range bars {
		st.step(bar, stream.Points[i], stream.Long[i], stream.Short[i])
	}

	res := Result{
		Trades:         st.trades,
		FinalBalance:   st.balance,
		HighestBalance: st.highest,
		MaxDrawdown:    st.maxDrawdown,
		MarginCalled:   st.marginCalled,
	}
	if st.pos.Side != Flat {
		open := st.pos
		res.Open = &open
	}
	return res, nil
}

type state struct {
	leverage     float64
	exitAt       float64
	balance      float64
	highest      float64
	maxDrawdown  float64
	marginCalled bool
	pos          Position
	trades       []Trade
}

func (st *state) step(bar market.Bar, points float64, long, short bool) {
	switch st.pos.Side {
	case Flat:
		if st.marginCalled {
			return
		}
		// long is evaluated first and wins a tie
		if long {
			st.open(Long, bar, points)
		} else if short {
			st.open(Short, bar, points)
		}
	case Long:
		if points < st.exitAt || st.marginCalled {
			st.close(bar, (bar.Close-st.pos.EntryPrice)/st.pos.EntryPrice*st.leverage)
		}
	case Short:
		if points > st.exitAt || st.marginCalled {
			st.close(bar, (st.pos.EntryPrice-bar.Close)/st.pos.EntryPrice*st.leverage)
		}
	}
}

func (st *state) open(side Side, bar market.Bar, points float64) {
	st.pos = Position{
		Side:         side,
		EntryPrice:   bar.Close,
		EntryTime:    bar.OpenTime,
		EntryPoints:  points,
		EntryBalance: st.balance,
	}
}

func (st *state) close(bar market.Bar, pnl float64) {
	entryBalance := st.balance
	st.balance = entryBalance * (1 + pnl)

	st.trades = append(st.trades, Trade{
		EntryTime:    st.pos.EntryTime,
		ExitTime:     bar.CloseTime,
		Side:         st.pos.Side,
		EntryPrice:   st.pos.EntryPrice,
		ExitPrice:    bar.Close,
		PnL:          pnl,
		EntryBalance: entryBalance,
		ExitBalance:  st.balance,
		EntryPoints:  st.pos.EntryPoints,
	})
	st.pos = Position{Side: Flat}

	if st.balance > st.highest {
		st.highest = st.balance
	}
	if dd := st.highest - st.balance; dd > st.maxDrawdown {
		st.maxDrawdown = dd
	}
	if st.balance <= 0 {
		st.marginCalled = true
	}
}
