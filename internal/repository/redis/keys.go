package redis

import (
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

const ns = "beachclub:v1"

// KeyDateGeneration holds the counter bumped by every change to date.
func KeyDateGeneration(date time.Time) string {
	return fmt.Sprintf("%s:date:%s:gen", ns, domain.DateKey(date))
}

func KeyFloorPlan(date time.Time, gen int64) string {
	return fmt.Sprintf("%s:date:%s:g%d:floorplan", ns, domain.DateKey(date), gen)
}

func KeyFreeFurniture(date time.Time, gen int64) string {
	return fmt.Sprintf("%s:date:%s:g%d:free", ns, domain.DateKey(date), gen)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemReservation(idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%s", ns, idemKey)
}

func ChannelDatesChanged() string {
	return ns + ":dates:changed"
}
