package recorder

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"PairSentinel/internal/model"
)

// Columns is the header of the persisted result table.
var Columns = []string{"sym_1", "sym_2", "p_value", "t_value", "c_value", "hedge_ratio", "zero_crossings"}

// Recorder persists the ranked result table. SaveTable replaces any prior table in full.
type Recorder interface {
	SaveTable(ctx context.Context, table *model.ResultTable) error
	LoadTable(ctx context.Context) (*model.ResultTable, error)
	Close() error
}

// ChainRecorder writes to a primary recorder and then to mirrors. Reads go to the primary.
// Only the primary decides whether a save succeeded; mirror failures are logged.
type ChainRecorder struct {
	Primary Recorder
	Mirrors []Recorder
}

// Chain builds a ChainRecorder.
func Chain(primary Recorder, mirrors ...Recorder) *ChainRecorder {
	return &ChainRecorder{Primary: primary, Mirrors: mirrors}
}

func (c *ChainRecorder) SaveTable(ctx context.Context, table *model.ResultTable) error {
	if err := c.Primary.SaveTable(ctx, table); err != nil {
		return err
	}
	for i, m := range c.Mirrors {
		if err := m.SaveTable(ctx, table); err != nil {
			log.Warn().Err(err).Int("mirror", i).Int("rows", table.Len()).
				Msg("result table mirror out of date")
		}
	}
	return nil
}

func (c *ChainRecorder) LoadTable(ctx context.Context) (*model.ResultTable, error) {
	return c.Primary.LoadTable(ctx)
}

func (c *ChainRecorder) Close() error {
	errs := []error{c.Primary.Close()}
	for _, m := range c.Mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
