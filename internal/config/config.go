package config

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Accrual formula variants. The product flipped between these across
// iterations, so the choice is configuration rather than code.
const (
	FormulaCurrentBalance = "current_balance" // percent of the current bucket balance
	FormulaInitialBalance = "initial_balance" // fixed amount derived from the initial balance
)

// AccrualConfig drives the daily scheduler tick. Decay and growth are two
// separable rate sets; either may be zero.
type AccrualConfig struct {
	Formula           string
	NormalDailyRate   decimal.Decimal // e.g. 0.005 = 0.5% deducted from normal
	BenefitDailyRate  decimal.Decimal // e.g. 0.01 = 1% moved benefit -> withdrawal
	NormalGrowthRate  decimal.Decimal // optional independent growth credit
	BenefitGrowthRate decimal.Decimal
	WeekdaysOnly      bool
}

type DepositConfig struct {
	AdmissionFeePercent decimal.Decimal // withheld from the principal on approval
	BenefitMultiplier   decimal.Decimal // benefit credit = net x multiplier
	NormalGrowthRate    decimal.Decimal // daily growth rates stamped on new deposits
	BenefitGrowthRate   decimal.Decimal
	DayCap              int // 200 or 400 depending on product version
}

type WithdrawalConfig struct {
	MinimumAmount decimal.Decimal
}

// MLMConfig carries the hand-authored per-level percentage tables and the
// scheduled-share rates. Tables are data, not code: the 10- and 30-level
// variants are both shipped and the active one is selected here.
type MLMConfig struct {
	MaxDepth            int // 10 or 30
	LevelPercentages    map[int]decimal.Decimal
	DepositBonusPercent decimal.Decimal // flat per-level percent on deposit approval
	DailySharePercent   decimal.Decimal // percent of benefit balance shared daily
	PerLevelPercent     decimal.Decimal // level-based share: percent per mlm level
	SignupBonus         decimal.Decimal // instant credit to the direct referrer
	JoinBaseURL         string          // referral link base for QR rendering
}

type GameConfig struct {
	PayoutShape       string
	ResetDelaySeconds int // 0 = reset on the next sweep regardless of age
}

type JobsConfig struct {
	DailyTickSpec      string
	DailyShareSpec     string
	LevelShareSpec     string
	GameResetSpec      string
	Timezone           string
	TickHistoryEntries int64
}

type Config struct {
	Accrual    AccrualConfig
	Deposit    DepositConfig
	Withdrawal WithdrawalConfig
	MLM        MLMConfig
	ColorGame  GameConfig
	NumberGame GameConfig
	Jobs       JobsConfig
}

// TenLevelTable is the 10-level referral bonus table (10% total).
var TenLevelTable = map[int]decimal.Decimal{
	1:  decimal.RequireFromString("4.0"),
	2:  decimal.RequireFromString("2.0"),
	3:  decimal.RequireFromString("1.0"),
	4:  decimal.RequireFromString("0.5"),
	5:  decimal.RequireFromString("0.4"),
	6:  decimal.RequireFromString("0.3"),
	7:  decimal.RequireFromString("0.3"),
	8:  decimal.RequireFromString("0.4"),
	9:  decimal.RequireFromString("0.5"),
	10: decimal.RequireFromString("0.6"),
}

// ThirtyLevelTable is the 30-level profit share table: individually tuned
// levels 1-5, then banded groups (6-10 at 3%, 11-20 at 2.5%, 21-30 at 4.5%).
var ThirtyLevelTable = buildThirtyLevelTable()

func buildThirtyLevelTable() map[int]decimal.Decimal {
	t := map[int]decimal.Decimal{
		1: decimal.RequireFromString("15.0"),
		2: decimal.RequireFromString("10.0"),
		3: decimal.RequireFromString("5.0"),
		4: decimal.RequireFromString("3.0"),
		5: decimal.RequireFromString("4.0"),
	}
	for lvl := 6; lvl <= 10; lvl++ {
		t[lvl] = decimal.RequireFromString("3.0")
	}
	for lvl := 11; lvl <= 20; lvl++ {
		t[lvl] = decimal.RequireFromString("2.5")
	}
	for lvl := 21; lvl <= 30; lvl++ {
		t[lvl] = decimal.RequireFromString("4.5")
	}
	return t
}

// SetDefaults registers every tunable with viper. Values changed between
// product iterations, so nothing here is compiled into the engines.
func SetDefaults() {
	viper.SetDefault("accrual.formula", FormulaCurrentBalance)
	viper.SetDefault("accrual.normal_daily_rate", "0.005")
	viper.SetDefault("accrual.benefit_daily_rate", "0.01")
	viper.SetDefault("accrual.normal_growth_rate", "0")
	viper.SetDefault("accrual.benefit_growth_rate", "0")
	viper.SetDefault("accrual.weekdays_only", false)

	viper.SetDefault("deposit.admission_fee_percent", "10")
	viper.SetDefault("deposit.benefit_multiplier", "2")
	viper.SetDefault("deposit.normal_growth_rate", "0.05")
	viper.SetDefault("deposit.benefit_growth_rate", "0.10")
	viper.SetDefault("deposit.day_cap", 200)

	viper.SetDefault("withdrawal.minimum_amount", "500")

	viper.SetDefault("mlm.max_depth", 30)
	viper.SetDefault("mlm.deposit_bonus_percent", "1")
	viper.SetDefault("mlm.daily_share_percent", "1")
	viper.SetDefault("mlm.per_level_percent", "0.5")
	viper.SetDefault("mlm.signup_bonus", "0")
	viper.SetDefault("mlm.join_base_url", "https://app.growfund.example/join")

	viper.SetDefault("game.color.payout_shape", "fixed")
	viper.SetDefault("game.color.reset_delay_seconds", 0)
	viper.SetDefault("game.number.payout_shape", "entry_return")
	viper.SetDefault("game.number.reset_delay_seconds", 60)

	viper.SetDefault("jobs.daily_tick_spec", "0 0 * * *")
	viper.SetDefault("jobs.daily_share_spec", "0 1 * * *")
	viper.SetDefault("jobs.level_share_spec", "0 2 * * *")
	viper.SetDefault("jobs.game_reset_spec", "* * * * *")
	viper.SetDefault("jobs.timezone", "Asia/Dhaka")
	viper.SetDefault("jobs.tick_history_entries", 30)
}

// Load reads the full configuration out of viper. It fails loudly on a
// malformed rate rather than silently running with a zero.
func Load() (*Config, error) {
	cfg := &Config{}

	var err error
	read := func(key string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(viper.GetString(key))
		if err != nil {
			err = fmt.Errorf("config %s: %w", key, err)
		}
		return d
	}

	cfg.Accrual = AccrualConfig{
		Formula:           viper.GetString("accrual.formula"),
		NormalDailyRate:   read("accrual.normal_daily_rate"),
		BenefitDailyRate:  read("accrual.benefit_daily_rate"),
		NormalGrowthRate:  read("accrual.normal_growth_rate"),
		BenefitGrowthRate: read("accrual.benefit_growth_rate"),
		WeekdaysOnly:      viper.GetBool("accrual.weekdays_only"),
	}
	cfg.Deposit = DepositConfig{
		AdmissionFeePercent: read("deposit.admission_fee_percent"),
		BenefitMultiplier:   read("deposit.benefit_multiplier"),
		NormalGrowthRate:    read("deposit.normal_growth_rate"),
		BenefitGrowthRate:   read("deposit.benefit_growth_rate"),
		DayCap:              viper.GetInt("deposit.day_cap"),
	}
	cfg.Withdrawal = WithdrawalConfig{
		MinimumAmount: read("withdrawal.minimum_amount"),
	}
	cfg.MLM = MLMConfig{
		MaxDepth:            viper.GetInt("mlm.max_depth"),
		DepositBonusPercent: read("mlm.deposit_bonus_percent"),
		DailySharePercent:   read("mlm.daily_share_percent"),
		PerLevelPercent:     read("mlm.per_level_percent"),
		SignupBonus:         read("mlm.signup_bonus"),
		JoinBaseURL:         viper.GetString("mlm.join_base_url"),
	}
	cfg.ColorGame = GameConfig{
		PayoutShape:       viper.GetString("game.color.payout_shape"),
		ResetDelaySeconds: viper.GetInt("game.color.reset_delay_seconds"),
	}
	cfg.NumberGame = GameConfig{
		PayoutShape:       viper.GetString("game.number.payout_shape"),
		ResetDelaySeconds: viper.GetInt("game.number.reset_delay_seconds"),
	}
	cfg.Jobs = JobsConfig{
		DailyTickSpec:      viper.GetString("jobs.daily_tick_spec"),
		DailyShareSpec:     viper.GetString("jobs.daily_share_spec"),
		LevelShareSpec:     viper.GetString("jobs.level_share_spec"),
		GameResetSpec:      viper.GetString("jobs.game_reset_spec"),
		Timezone:           viper.GetString("jobs.timezone"),
		TickHistoryEntries: viper.GetInt64("jobs.tick_history_entries"),
	}
	if err != nil {
		return nil, err
	}

	cfg.MLM.LevelPercentages, err = loadLevelTable(cfg.MLM.MaxDepth)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadLevelTable picks the built-in table matching the configured depth and
// applies any per-level overrides set under mlm.levels.<n>.
func loadLevelTable(maxDepth int) (map[int]decimal.Decimal, error) {
	var base map[int]decimal.Decimal
	switch maxDepth {
	case 10:
		base = TenLevelTable
	case 30:
		base = ThirtyLevelTable
	default:
		return nil, fmt.Errorf("config mlm.max_depth: unsupported depth %d (want 10 or 30)", maxDepth)
	}

	table := make(map[int]decimal.Decimal, maxDepth)
	for lvl, pct := range base {
		table[lvl] = pct
	}

	overrides := viper.GetStringMapString("mlm.levels")
	for key, val := range overrides {
		lvl, err := strconv.Atoi(key)
		if err != nil || lvl < 1 || lvl > maxDepth {
			return nil, fmt.Errorf("config mlm.levels: bad level %q", key)
		}
		pct, err := decimal.NewFromString(val)
		if err != nil {
			return nil, fmt.Errorf("config mlm.levels.%d: %w", lvl, err)
		}
		table[lvl] = pct
	}
	return table, nil
}

// LevelPercent returns the share percent for a level, zero when the level
// has no configured entry.
func (m *MLMConfig) LevelPercent(level int) decimal.Decimal {
	if pct, ok := m.LevelPercentages[level]; ok {
		return pct
	}
	return decimal.Zero
}
