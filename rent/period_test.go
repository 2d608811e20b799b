package rent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hearth/rent-engine/rent"
)

func TestPeriodKey_NextPrev_YearBoundaries(t *testing.T) {
	dec := key(2025, time.December)
	jan := key(2026, time.January)

	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Prev())
	assert.Equal(t, key(2025, time.July), key(2025, time.June).Next())
}

func TestPeriodKey_Ordering(t *testing.T) {
	assert.True(t, key(2025, time.December).Before(key(2026, time.January)))
	assert.True(t, key(2026, time.January).After(key(2025, time.December)))
	assert.False(t, key(2025, time.June).Before(key(2025, time.June)))
	assert.False(t, key(2025, time.June).After(key(2025, time.June)))

	assert.Equal(t, key(2025, time.March), rent.EarlierOf(key(2025, time.June), key(2025, time.March)))
	assert.Equal(t, key(2025, time.June), rent.LaterOf(key(2025, time.June), key(2025, time.March)))
}

func TestPeriodKey_Validate(t *testing.T) {
	assert.NoError(t, key(2025, time.June).Validate())
	assert.ErrorIs(t, key(1999, time.June).Validate(), rent.ErrInvalidPeriod)
	assert.ErrorIs(t, key(2101, time.June).Validate(), rent.ErrInvalidPeriod)
	assert.ErrorIs(t, key(2025, 0).Validate(), rent.ErrInvalidPeriod)
	assert.ErrorIs(t, key(2025, 13).Validate(), rent.ErrInvalidPeriod)
}

func TestPeriodKey_StartEnd(t *testing.T) {
	feb := key(2024, time.February) // leap year
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), feb.Start())
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), feb.End())
}

func TestPeriodKey_String(t *testing.T) {
	assert.Equal(t, "2025-06", key(2025, time.June).String())
	assert.Equal(t, "2025-12", key(2025, time.December).String())
}

func TestKeyFor_AndCurrentKey(t *testing.T) {
	d := time.Date(2025, time.June, 30, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, key(2025, time.June), rent.KeyFor(d))
	assert.Equal(t, key(2025, time.June), rent.CurrentKey(fixedClock(d)))
}
