package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
	SetDefaults()
}

func TestTenLevelTable(t *testing.T) {
	assert.Len(t, TenLevelTable, 10)

	sum := decimal.Zero
	for _, pct := range TenLevelTable {
		sum = sum.Add(pct)
	}
	assert.Equal(t, "10", sum.String(), "ten level table distributes 10 percent in total")
}

func TestThirtyLevelTable(t *testing.T) {
	assert.Len(t, ThirtyLevelTable, 30)

	// hand-tuned head, then the three bands
	assert.Equal(t, "15", ThirtyLevelTable[1].String())
	assert.Equal(t, "4", ThirtyLevelTable[5].String())
	assert.Equal(t, "3", ThirtyLevelTable[8].String())
	assert.Equal(t, "2.5", ThirtyLevelTable[15].String())
	assert.Equal(t, "4.5", ThirtyLevelTable[30].String())
}

func TestLoadDefaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FormulaCurrentBalance, cfg.Accrual.Formula)
	assert.Equal(t, "0.005", cfg.Accrual.NormalDailyRate.String())
	assert.Equal(t, "0.01", cfg.Accrual.BenefitDailyRate.String())
	assert.Equal(t, "10", cfg.Deposit.AdmissionFeePercent.String())
	assert.Equal(t, 200, cfg.Deposit.DayCap)
	assert.Equal(t, "500", cfg.Withdrawal.MinimumAmount.String())
	assert.Equal(t, 30, cfg.MLM.MaxDepth)
	assert.Len(t, cfg.MLM.LevelPercentages, 30)
	assert.Equal(t, 0, cfg.ColorGame.ResetDelaySeconds)
	assert.Equal(t, 60, cfg.NumberGame.ResetDelaySeconds)
	assert.Equal(t, "Asia/Dhaka", cfg.Jobs.Timezone)
}

func TestLoadRejectsMalformedRate(t *testing.T) {
	resetViper()
	viper.Set("accrual.normal_daily_rate", "half a percent")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accrual.normal_daily_rate")
}

func TestLoadLevelTable(t *testing.T) {
	t.Run("depth selects the built-in table", func(t *testing.T) {
		resetViper()
		viper.Set("mlm.max_depth", 10)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "4", cfg.MLM.LevelPercent(1).String())
		assert.Equal(t, "0.6", cfg.MLM.LevelPercent(10).String())
		assert.True(t, cfg.MLM.LevelPercent(11).IsZero())
	})

	t.Run("per-level overrides replace table entries", func(t *testing.T) {
		resetViper()
		viper.Set("mlm.max_depth", 10)
		viper.Set("mlm.levels", map[string]string{"3": "2.5"})

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "2.5", cfg.MLM.LevelPercent(3).String())
		assert.Equal(t, "4", cfg.MLM.LevelPercent(1).String(), "untouched levels keep table values")
	})

	t.Run("unsupported depth rejected", func(t *testing.T) {
		resetViper()
		viper.Set("mlm.max_depth", 7)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported depth")
	})

	t.Run("override outside the depth rejected", func(t *testing.T) {
		resetViper()
		viper.Set("mlm.max_depth", 10)
		viper.Set("mlm.levels", map[string]string{"15": "1"})

		_, err := Load()
		require.Error(t, err)
	})
}
