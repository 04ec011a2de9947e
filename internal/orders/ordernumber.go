package orders

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const orderNumberLayout = "20060102150405"

// NewOrderNumber returns the second-resolution timestamp followed by a random
// four digit suffix. Uniqueness is enforced by the store, not here.
func NewOrderNumber(now time.Time) string {
	return now.Format(orderNumberLayout) + strconv.Itoa(1000+rand.IntN(9000))
}
