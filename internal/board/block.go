package board

import (
	"time"

	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"
	"spreadboard/pkg/dhan"
)

// Block is one chart block with the results of its last Done action.
type Block struct {
	ID     string      `json:"id"`
	Config BlockConfig `json:"config"`

	// FetchedWith is the config the results below were computed from. It
	// differs from Config when the block was edited after its last Done.
	FetchedWith *BlockConfig `json:"fetched_with,omitempty"`

	Main      *dhan.FetchResult `json:"main,omitempty"`
	MainError string            `json:"main_error,omitempty"`

	// Legs holds the Spot, Current and Next fetches made for the difference.
	Legs      map[ohlc.Leg]*dhan.FetchResult `json:"legs,omitempty"`
	LegErrors map[ohlc.Leg]string            `json:"leg_errors,omitempty"`

	Difference *diff.Result `json:"difference,omitempty"`
	DiffError  string       `json:"diff_error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Diagnostics is the per-block panel: what was sent and received for each fetch.
type Diagnostics struct {
	Main *dhan.Diagnostics              `json:"main,omitempty"`
	Legs map[ohlc.Leg]*dhan.Diagnostics `json:"legs,omitempty"`
}

func (b *Block) Diagnostics() Diagnostics {
	var d Diagnostics
	if b.Main != nil {
		main := b.Main.Diagnostics
		d.Main = &main
	}
	if len(b.Legs) > 0 {
		d.Legs = make(map[ohlc.Leg]*dhan.Diagnostics, len(b.Legs))
		for leg, res := range b.Legs {
			legDiag := res.Diagnostics
			d.Legs[leg] = &legDiag
		}
	}
	return d
}
