package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

// CSVJournal appends levels and orders to two CSV files.
type CSVJournal struct {
	mu     sync.Mutex
	orders *csv.Writer
	levels *csv.Writer
	of, lf *os.File
}

var (
	orderHeader = []string{"id", "time", "symbol", "side", "kind", "volume", "price", "stop_loss", "take_profit", "deviation", "status", "reason"}
	levelHeader = []string{"id", "time", "symbol", "side", "kind", "strategy", "entry", "stop_loss", "take_profit"}
)

func NewCSV(ordersPath, levelsPath string) (*CSVJournal, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	lf, err := os.Create(levelsPath)
	if err != nil {
		_ = of.Close()
		return nil, err
	}

	ow := csv.NewWriter(of)
	lw := csv.NewWriter(lf)

	if err := ow.Write(orderHeader); err != nil {
		return nil, err
	}
	if err := lw.Write(levelHeader); err != nil {
		return nil, err
	}
	ow.Flush()
	lw.Flush()

	return &CSVJournal{orders: ow, levels: lw, of: of, lf: lf}, nil
}

func f64(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (j *CSVJournal) RecordLevels(r LevelRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.levels.Write([]string{
		r.ID, r.Time.UTC().Format(time.RFC3339Nano), r.Symbol, r.Side, r.Kind, r.Strategy,
		f64(r.Entry), f64(r.StopLoss), f64(r.TakeProfit),
	})
	j.levels.Flush()
	if err != nil {
		return err
	}
	return j.levels.Error()
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.orders.Write([]string{
		o.ID, o.Time.UTC().Format(time.RFC3339Nano), o.Symbol, o.Side, o.Kind,
		f64(o.Volume), f64(o.Price), f64(o.StopLoss), f64(o.TakeProfit),
		strconv.Itoa(o.Deviation), o.Status, o.Reason,
	})
	j.orders.Flush()
	if err != nil {
		return err
	}
	return j.orders.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.orders.Flush()
	j.levels.Flush()
	err1 := j.of.Close()
	err2 := j.lf.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
