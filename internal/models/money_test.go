package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ShareBps(t *testing.T) {
	tests := []struct {
		name  string
		total Money
		bps   int64
		want  Money
	}{
		{"85% of 1000.00", 100000, 8500, 85000},
		{"15% of 1000.00", 100000, 1500, 15000},
		{"85% of 0.01 rounds to 0.01", 1, 8500, 1},
		{"85% of 333.33", 33333, 8500, 28333},
		{"85% of 99.99", 9999, 8500, 8499},
		{"zero", 0, 8500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.total.ShareBps(tt.bps))
		})
	}
}

func TestMoney_ShareIsDeterministic(t *testing.T) {
	total := NewMoneyFromFloat(1234.56)
	first := total.ShareBps(8500)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, total.ShareBps(8500))
	}
	assert.Equal(t, "1049.38", first.String())
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Money  `json:"amount"`
		Opt    *Money `json:"opt"`
	}{Amount: 85000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 850.00, "opt": null}`, string(data))

	var in struct {
		Rate Money `json:"rate"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"rate": 499.996}`), &in))
	assert.Equal(t, Money(50000), in.Rate)

	require.NoError(t, json.Unmarshal([]byte(`{"rate": "12.5"}`), &in))
	assert.Equal(t, Money(1250), in.Rate)

	assert.Error(t, json.Unmarshal([]byte(`{"rate": "abc"}`), &in))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-12.30", Money(-1230).String())
	assert.Equal(t, 12.3, Money(1230).Float64())
	assert.Equal(t, Money(2400), Money(1200).MulInt(2))
}
