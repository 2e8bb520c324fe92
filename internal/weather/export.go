package weather

import (
	"context"
	"fmt"
	"time"
)

// ExportSheet is one sheet of the workbook handed to the external spreadsheet
// writer: a name, a header row, and data rows. The writer owns the binary
// format; this side only supplies the cells.
type ExportSheet struct {
	Name   string   `json:"name"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

// ExportWorkbook is the two-sheet export: raw observations plus the summary
// statistics for the same window.
type ExportWorkbook struct {
	Filename     string      `json:"filename"`
	Observations ExportSheet `json:"observations"`
	Summary      ExportSheet `json:"summary"`
}

var observationHeader = []string{
	"Fecha/Hora", "Temp (°C)", "Humedad (%)", "Punto Rocío (°C)",
	"Viento (km/h)", "Ráfaga (km/h)", "Dirección Viento (°)", "Presión (mb)",
	"Lluvia (mm/h)", "Lluvia Acumulada (mm)", "UV", "Radiación Solar (W/m²)",
}

// ExportRows assembles the workbook rows for [start, end]: the history result
// set and the statistics result set, unmodified, as the export collaborator
// expects them.
func (s *Service) ExportRows(ctx context.Context, start, end time.Time) (ExportWorkbook, error) {
	observations, err := s.History(ctx, start, end)
	if err != nil {
		return ExportWorkbook{}, err
	}
	if len(observations) == 0 {
		return ExportWorkbook{}, ErrNotFound
	}

	summary, err := Summarize(observations, start.UTC().Truncate(time.Second), end.UTC().Truncate(time.Second))
	if err != nil {
		return ExportWorkbook{}, err
	}

	return ExportWorkbook{
		Filename:     fmt.Sprintf("weather_data_%s_%s.xlsx", start.UTC().Format("20060102"), end.UTC().Format("20060102")),
		Observations: observationSheet(observations),
		Summary:      summarySheet(s.stationID, start, end, len(observations), summary),
	}, nil
}

func observationSheet(observations []Observation) ExportSheet {
	rows := make([][]any, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, []any{
			obs.Timestamp.UTC().Format(time.RFC3339),
			cell(obs.TempC),
			cell(obs.HumidityPct),
			cell(obs.DewpointC),
			cell(obs.WindSpeedKph),
			cell(obs.WindGustKph),
			cell(obs.WindDirDeg),
			cell(obs.PressureMb),
			cell(obs.PrecipRateMmh),
			cell(obs.PrecipTotalMm),
			cell(obs.UVIndex),
			cell(obs.SolarRadiationWm2),
		})
	}
	return ExportSheet{
		Name:   "Datos Meteorológicos",
		Header: observationHeader,
		Rows:   rows,
	}
}

func summarySheet(stationID string, start, end time.Time, count int, summary StatisticsSummary) ExportSheet {
	period := fmt.Sprintf("%s - %s", start.UTC().Format("20060102"), end.UTC().Format("20060102"))

	rows := [][]any{
		{"RESUMEN METEOROLÓGICO", ""},
		{"Período", period},
		{"Estación", stationID},
		{"Total Observaciones", count},
		{"", ""},
		{"TEMPERATURA", ""},
		{"Máxima (°C)", cell(summary.TempMaxC)},
		{"Mínima (°C)", cell(summary.TempMinC)},
		{"Media (°C)", cell(summary.TempAvgC)},
		{"", ""},
		{"HUMEDAD", ""},
		{"Media (%)", cell(summary.HumidityAvg)},
		{"", ""},
		{"VIENTO", ""},
		{"Velocidad Media (km/h)", cell(summary.WindAvgKph)},
		{"Ráfaga Máxima (km/h)", cell(summary.WindGustMaxKph)},
		{"", ""},
		{"PRESIÓN", ""},
		{"Media (mb)", cell(summary.PressureAvgMb)},
		{"", ""},
		{"PRECIPITACIÓN", ""},
		{"Total (mm)", cell(summary.PrecipTotalMm)},
	}

	return ExportSheet{
		Name: "Resumen",
		Rows: rows,
	}
}

// cell maps a nullable measurement to a spreadsheet cell; absent values export
// as "N/A", never as zero.
func cell(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return *v
}
