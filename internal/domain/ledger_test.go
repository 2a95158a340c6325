package domain

import (
	"math"
	"testing"
)

func TestNextExpiry(t *testing.T) {
	const period = uint64(2_592_000) // 30 days
	now := uint64(1_700_000_000)

	tests := []struct {
		name    string
		current uint64
		periods uint64
		want    uint64
	}{
		{
			name:    "fresh account starts from now",
			current: 0,
			periods: 2,
			want:    now + 2*period,
		},
		{
			name:    "expired account starts from now",
			current: now - 10,
			periods: 1,
			want:    now + period,
		},
		{
			name:    "active account stacks on remaining time",
			current: now + 5*period,
			periods: 1,
			want:    now + 6*period,
		},
		{
			name:    "expiry equal to now counts as expired",
			current: now,
			periods: 3,
			want:    now + 3*period,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextExpiry(now, tt.current, period, tt.periods)
			if got != tt.want {
				t.Errorf("NextExpiry() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextExpiryExactMultiples(t *testing.T) {
	// The advance must always be an exact multiple of the period length,
	// regardless of where now falls relative to the stored expiry.
	const period = uint64(3600)
	now := uint64(1_700_000_123)

	for periods := uint64(1); periods <= 5; periods++ {
		got := NextExpiry(now, 0, period, periods)
		if (got-now)%period != 0 {
			t.Errorf("advance %d is not a multiple of period %d", got-now, period)
		}
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		name    string
		price   uint64
		periods uint64
		want    uint64
		ok      bool
	}{
		{"simple", 1000, 2, 2000, true},
		{"free configuration", 0, 365, 0, true},
		{"max periods at max price", MaxUnitPrice, 365, MaxUnitPrice * 365, true},
		{"overflow detected", math.MaxUint64 / 2, 3, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Cost(tt.price, tt.periods)
			if ok != tt.ok {
				t.Fatalf("Cost() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Cost() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidatePeriods(t *testing.T) {
	tests := []struct {
		periods uint64
		wantErr error
	}{
		{0, ErrZeroPeriods},
		{1, nil},
		{365, nil},
		{366, ErrTooManyPeriods},
	}

	for _, tt := range tests {
		if err := ValidatePeriods(tt.periods); err != tt.wantErr {
			t.Errorf("ValidatePeriods(%d) = %v, want %v", tt.periods, err, tt.wantErr)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	valid := Params{
		Token:         "tok_usdx",
		Treasury:      "acct_treasury",
		Administrator: "acct_admin",
		UnitPrice:     1000,
		PeriodSeconds: 2_592_000,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	zeroPeriod := valid
	zeroPeriod.PeriodSeconds = 0
	if err := zeroPeriod.Validate(); err != ErrInvalidPeriod {
		t.Errorf("zero period: got %v, want ErrInvalidPeriod", err)
	}

	noTreasury := valid
	noTreasury.Treasury = ""
	if err := noTreasury.Validate(); err != ErrInvalidRecipient {
		t.Errorf("empty treasury: got %v, want ErrInvalidRecipient", err)
	}

	hugePrice := valid
	hugePrice.UnitPrice = MaxUnitPrice + 1
	if err := hugePrice.Validate(); err != ErrPriceOverflow {
		t.Errorf("overflowing price: got %v, want ErrPriceOverflow", err)
	}
}
