package weather

import (
	"math"
	"time"
)

// Summarize computes statistics over the observations whose timestamp falls in
// the closed interval [start, end]. It is a pure function: the store hands it
// an ascending sequence and it never looks at anything else.
//
// Means are taken over non-nil samples only, so a sparsely reported field does
// not drag its average toward zero. A field with no samples at all yields a
// nil statistic, and an empty window yields ObservationCount 0 with every
// numeric field nil.
//
// Precipitation: the station provider reports precip_total_mm as a running
// daily accumulator that resets at midnight, so the window total is the sum of
// each UTC day's maximum accumulator value, not a sum across samples.
func Summarize(observations []Observation, start, end time.Time) (StatisticsSummary, error) {
	if start.After(end) {
		return StatisticsSummary{}, ErrInvalidRange
	}

	var (
		summary  StatisticsSummary
		tempMax  = newExtreme(math.Max)
		tempMin  = newExtreme(math.Min)
		gustMax  = newExtreme(math.Max)
		tempAvg  mean
		humAvg   mean
		windAvg  mean
		pressAvg mean
		dayPeaks = map[string]float64{}
		dayOrder []string
	)

	for _, obs := range observations {
		ts := obs.Timestamp.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		summary.ObservationCount++

		tempMax.observe(obs.TempC)
		tempMin.observe(obs.TempC)
		gustMax.observe(obs.WindGustKph)
		tempAvg.observe(obs.TempC)
		humAvg.observe(obs.HumidityPct)
		windAvg.observe(obs.WindSpeedKph)
		pressAvg.observe(obs.PressureMb)

		if obs.PrecipTotalMm != nil {
			day := ts.Format("2006-01-02")
			peak, seen := dayPeaks[day]
			if !seen {
				dayOrder = append(dayOrder, day)
			}
			if !seen || *obs.PrecipTotalMm > peak {
				dayPeaks[day] = *obs.PrecipTotalMm
			}
		}
	}

	summary.TempMaxC = tempMax.value()
	summary.TempMinC = tempMin.value()
	summary.TempAvgC = tempAvg.value()
	summary.HumidityAvg = humAvg.value()
	summary.WindAvgKph = windAvg.value()
	summary.WindGustMaxKph = gustMax.value()
	summary.PressureAvgMb = pressAvg.value()

	if len(dayOrder) > 0 {
		var total float64
		for _, day := range dayOrder {
			total += dayPeaks[day]
		}
		summary.PrecipTotalMm = &total
	}

	return summary, nil
}

// extreme tracks a running max or min over non-nil samples.
type extreme struct {
	pick func(a, b float64) float64
	best *float64
}

func newExtreme(pick func(a, b float64) float64) extreme {
	return extreme{pick: pick}
}

func (e *extreme) observe(sample *float64) {
	if sample == nil {
		return
	}
	if e.best == nil {
		v := *sample
		e.best = &v
		return
	}
	*e.best = e.pick(*e.best, *sample)
}

func (e *extreme) value() *float64 {
	return e.best
}

// mean accumulates an arithmetic mean over non-nil samples; the denominator is
// the count of reported samples, not the window's observation count.
type mean struct {
	sum   float64
	count int
}

func (m *mean) observe(sample *float64) {
	if sample == nil {
		return
	}
	m.sum += *sample
	m.count++
}

func (m *mean) value() *float64 {
	if m.count == 0 {
		return nil
	}
	v := m.sum / float64(m.count)
	return &v
}
