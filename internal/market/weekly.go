package market

import (
	"sort"
	"time"
)

// WeekStart maps a session date to the Monday of its trading week.
func WeekStart(d time.Time) time.Time {
	d = Day(d)
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return d.AddDate(0, 0, -offset)
}

// AggregateWeekly rolls daily bars into one bar per (symbol, week), dated by
// the week's Monday: first open, max high, min low, last close, summed
// volume. Deliverable quantity is summed only when every session in the week
// reported it; otherwise the weekly bar carries none, since a partial sum
// would understate the ratio silently.
func AggregateWeekly(s *Series) (*Series, error) {
	var weekly []SessionBar
	for _, sym := range s.Symbols() {
		var (
			cur     SessionBar
			open    bool
			delivOK bool
			curWeek time.Time
		)
		flush := func() {
			if open {
				cur.HasDeliverable = delivOK
				if !delivOK {
					cur.DeliverableQty = 0
				}
				weekly = append(weekly, cur)
			}
			open = false
		}
		for _, b := range s.Bars(sym) {
			week := WeekStart(b.Date)
			if !open || !week.Equal(curWeek) {
				flush()
				curWeek = week
				cur = SessionBar{
					Symbol:         sym,
					Date:           week,
					Open:           b.Open,
					High:           b.High,
					Low:            b.Low,
					Close:          b.Close,
					Volume:         b.Volume,
					DeliverableQty: b.DeliverableQty,
				}
				delivOK = b.HasDeliverable
				open = true
				continue
			}
			if b.High > cur.High {
				cur.High = b.High
			}
			if b.Low < cur.Low {
				cur.Low = b.Low
			}
			cur.Close = b.Close
			cur.Volume += b.Volume
			if b.HasDeliverable {
				cur.DeliverableQty += b.DeliverableQty
			} else {
				delivOK = false
			}
		}
		flush()
	}
	sort.SliceStable(weekly, func(i, j int) bool {
		if weekly[i].Symbol != weekly[j].Symbol {
			return weekly[i].Symbol < weekly[j].Symbol
		}
		return weekly[i].Date.Before(weekly[j].Date)
	})
	return NewSeries(weekly)
}
