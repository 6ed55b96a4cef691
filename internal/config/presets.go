package config

import (
	"fmt"
	"sort"

	"AlertWatch/internal/calculator"
	"AlertWatch/internal/scanner"
	"AlertWatch/internal/strategy"
)

// StrategyConfig is the YAML form of strategy.Config.
type StrategyConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ConfirmRule         string  `yaml:"confirm_rule"`
	MinPrice            float64 `yaml:"min_price"`
	MaxPrice            float64 `yaml:"max_price"`
	MinVolume           float64 `yaml:"min_volume"`
	ATRPeriod           int     `yaml:"atr_period"`
	StopLossATR         float64 `yaml:"stop_loss_atr"`
	TakeProfitATR       float64 `yaml:"take_profit_atr"`
	Weights             struct {
		Base         float64 `yaml:"base"`
		Confirmation float64 `yaml:"confirmation"`
		VolumeSpike  float64 `yaml:"volume_spike"`
		HigherLow    float64 `yaml:"higher_low"`
		BullishClose float64 `yaml:"bullish_close"`
		Momentum     float64 `yaml:"momentum"`
		MomentumPct  float64 `yaml:"momentum_pct"`
	} `yaml:"weights"`
	Zones struct {
		Enabled          bool    `yaml:"enabled"`
		EntryBand        float64 `yaml:"entry_band"`
		StopLossFar      float64 `yaml:"stop_loss_far"`
		TakeProfitFar    float64 `yaml:"take_profit_far"`
		InvalidationBand float64 `yaml:"invalidation_band"`
	} `yaml:"zones"`
	Allocation struct {
		Enabled bool             `yaml:"enabled"`
		Bands   []AllocationBand `yaml:"bands"`
	} `yaml:"allocation"`
}

// AllocationBand maps a minimum confidence to a position size percentage.
type AllocationBand struct {
	MinConfidence float64 `yaml:"min_confidence"`
	Percent       float64 `yaml:"percent"`
}

// ToStrategy converts to the evaluator settings.
func (s StrategyConfig) ToStrategy() strategy.Config {
	cfg := strategy.Config{
		ConfidenceThreshold: s.ConfidenceThreshold,
		Weights: calculator.ConfidenceWeights{
			Base:         s.Weights.Base,
			Confirmation: s.Weights.Confirmation,
			VolumeSpike:  s.Weights.VolumeSpike,
			HigherLow:    s.Weights.HigherLow,
			BullishClose: s.Weights.BullishClose,
			Momentum:     s.Weights.Momentum,
			MomentumPct:  s.Weights.MomentumPct,
		},
		ConfirmRule:        strategy.ConfirmRule(s.ConfirmRule),
		MinPrice:           s.MinPrice,
		MaxPrice:           s.MaxPrice,
		MinVolume:          s.MinVolume,
		ATRPeriod:          s.ATRPeriod,
		StopLossMultiplier: s.StopLossATR,
		TakeProfitMult:     s.TakeProfitATR,
		Zones: strategy.ZoneConfig{
			Enabled:          s.Zones.Enabled,
			EntryBand:        s.Zones.EntryBand,
			StopLossFar:      s.Zones.StopLossFar,
			TakeProfitFar:    s.Zones.TakeProfitFar,
			InvalidationBand: s.Zones.InvalidationBand,
		},
		AllocationEnabled: s.Allocation.Enabled,
		AllocationBands:   strategy.DefaultAllocationBands(),
	}
	if len(s.Allocation.Bands) > 0 {
		cfg.AllocationBands = make([]strategy.AllocationBand, 0, len(s.Allocation.Bands))
		for _, b := range s.Allocation.Bands {
			cfg.AllocationBands = append(cfg.AllocationBands, strategy.AllocationBand{
				MinConfidence: b.MinConfidence,
				Percent:       b.Percent,
			})
		}
	}
	return cfg
}

func fromStrategy(c strategy.Config) StrategyConfig {
	var s StrategyConfig
	s.ConfidenceThreshold = c.ConfidenceThreshold
	s.ConfirmRule = string(c.ConfirmRule)
	s.MinPrice, s.MaxPrice, s.MinVolume = c.MinPrice, c.MaxPrice, c.MinVolume
	s.ATRPeriod = c.ATRPeriod
	s.StopLossATR, s.TakeProfitATR = c.StopLossMultiplier, c.TakeProfitMult
	s.Weights.Base = c.Weights.Base
	s.Weights.Confirmation = c.Weights.Confirmation
	s.Weights.VolumeSpike = c.Weights.VolumeSpike
	s.Weights.HigherLow = c.Weights.HigherLow
	s.Weights.BullishClose = c.Weights.BullishClose
	s.Weights.Momentum = c.Weights.Momentum
	s.Weights.MomentumPct = c.Weights.MomentumPct
	s.Zones.Enabled = c.Zones.Enabled
	s.Zones.EntryBand = c.Zones.EntryBand
	s.Zones.StopLossFar = c.Zones.StopLossFar
	s.Zones.TakeProfitFar = c.Zones.TakeProfitFar
	s.Zones.InvalidationBand = c.Zones.InvalidationBand
	s.Allocation.Enabled = c.AllocationEnabled
	return s
}

// Preset is a named strategy configuration reproducing one alert script variant.
type Preset struct {
	Name            string
	Description     string
	Strategy        StrategyConfig
	PrimaryInterval string
	ConfirmInterval string
}

var presets = map[string]Preset{}

func register(p Preset) { presets[p.Name] = p }

func init() {
	register(Preset{
		Name:            "default",
		Description:     "weighted confidence, 5min green confirmation, $0.50-$50 and 5k volume filters",
		Strategy:        fromStrategy(strategy.DefaultConfig()),
		PrimaryInterval: "1min",
		ConfirmInterval: "5min",
	})

	v5 := strategy.DefaultConfig()
	v5.Weights = calculator.ConfidenceWeights{Base: 50, Momentum: 10, MomentumPct: 0.3, VolumeSpike: 15}
	v5.MinPrice, v5.MaxPrice, v5.MinVolume = 0, 0, 0
	v5.StopLossMultiplier, v5.TakeProfitMult = 1.2, 2.5
	v5.Zones = strategy.ZoneConfig{
		Enabled:          true,
		EntryBand:        0.1,
		StopLossFar:      1.5,
		TakeProfitFar:    4.0,
		InvalidationBand: 0.2,
	}
	register(Preset{
		Name:            "alwx-v5",
		Description:     "entry/SL/TP zones with invalidation level, momentum and volume spike scoring",
		Strategy:        fromStrategy(v5),
		PrimaryInterval: "1min",
		ConfirmInterval: "5min",
	})

	mom := strategy.DefaultConfig()
	mom.ConfirmRule = strategy.ConfirmBreakout
	mom.ConfidenceThreshold = 70
	mom.StopLossMultiplier, mom.TakeProfitMult = 1.2, 1.8
	mom.AllocationEnabled = true
	register(Preset{
		Name:            "momentum",
		Description:     "5min breakout confirmation, tight 1.2/1.8 ATR levels, allocation tiers",
		Strategy:        fromStrategy(mom),
		PrimaryInterval: "1min",
		ConfirmInterval: "5min",
	})

	swing := strategy.DefaultConfig()
	swing.ConfirmRule = strategy.ConfirmBoth
	swing.ConfidenceThreshold = 75
	swing.StopLossMultiplier, swing.TakeProfitMult = 1.5, 2.5
	swing.Zones = strategy.ZoneConfig{
		Enabled:          true,
		EntryBand:        0.1,
		StopLossFar:      1.8,
		TakeProfitFar:    4.0,
		InvalidationBand: 0.2,
	}
	swing.AllocationEnabled = true
	register(Preset{
		Name:            "swing",
		Description:     "5min primary with 15min green breakout confirmation, wide zones",
		Strategy:        fromStrategy(swing),
		PrimaryInterval: "5min",
		ConfirmInterval: "15min",
	})
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists the registered presets in name order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ScannerOptions converts the scan section to orchestrator options.
func (c *Config) ScannerOptions() (scanner.Options, error) {
	opts := scanner.Options{
		MaxTickers:      c.Tickers.Max,
		BatchSize:       c.Scan.BatchSize,
		BatchDelay:      c.Scan.BatchDelay,
		Concurrency:     c.Scan.Concurrency,
		PrimaryInterval: c.Scan.PrimaryInterval,
		PrimaryCount:    c.Scan.PrimaryCount,
		ConfirmInterval: c.Scan.ConfirmInterval,
		ConfirmCount:    c.Scan.ConfirmCount,
		FetchTimeout:    c.Scan.FetchTimeout,
		NotifyTimeout:   c.Scan.NotifyTimeout,
		StateFile:       c.Database.StateFile,
	}
	if c.Scan.Window.Enabled {
		w, err := scanner.NewWindow(c.Scan.Window.Start, c.Scan.Window.End, c.Scan.Window.Timezone)
		if err != nil {
			return scanner.Options{}, fmt.Errorf("scan.window: %w", err)
		}
		opts.Window = w
	}
	if err := opts.Validate(); err != nil {
		return scanner.Options{}, fmt.Errorf("scan: %w", err)
	}
	return opts, nil
}
