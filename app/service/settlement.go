package service

import "time"

// settlementDate resolves when a completed payin becomes disbursable: the
// configured number of weekdays after now, at midnight in the settlement
// timezone. Saturdays and Sundays do not count.
func (s *PaymentService) settlementDate(now time.Time, durationDays int) time.Time {
	if durationDays < 0 {
		durationDays = 0
	}
	return addBusinessDays(now.In(s.settlementTZ), durationDays)
}

func addBusinessDays(t time.Time, days int) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for days > 0 {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days--
	}
	return day
}
