package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

const (
	// Andalucía CAP alert area code.
	aemetAlertArea = "61"

	maxForecastDays = 5
	maxAlerts       = 5
)

// AEMETProvider implements weather.ForecastProvider against the AEMET
// OpenData API (opendata.aemet.es). Every endpoint answers with an envelope
// containing a `datos` URL that must be fetched in a second step.
type AEMETProvider struct {
	name      string
	apiKey    string
	municipio string
	baseURL   string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
	log       *slog.Logger
}

func NewAEMETProvider(client *http.Client, apiKey, municipio string, log *slog.Logger) *AEMETProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aemet",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &AEMETProvider{
		name:      "aemet",
		apiKey:    apiKey,
		municipio: municipio,
		baseURL:   "https://opendata.aemet.es/opendata/api",
		client:    client,
		circuit:   cb,
		log:       log.With("provider", "aemet"),
	}
}

func (p *AEMETProvider) Name() string {
	return p.name
}

// SetBaseURL overrides the API endpoint; tests point it at a mock server.
func (p *AEMETProvider) SetBaseURL(u string) {
	p.baseURL = u
}

// Forecast fetches the daily municipal forecast and normalizes the first five
// days.
func (p *AEMETProvider) Forecast(ctx context.Context) (weather.ForecastBulletin, error) {
	body, err := p.fetchData(ctx, "/prediccion/especifica/municipio/diaria/"+p.municipio)
	if err != nil {
		return weather.ForecastBulletin{}, err
	}

	var payload []aemetForecast
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ForecastBulletin{}, fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
	}
	if len(payload) == 0 {
		return weather.ForecastBulletin{}, fmt.Errorf("%w: empty forecast payload", weather.ErrProviderMalformed)
	}

	fc := payload[0]
	bulletin := weather.ForecastBulletin{
		Municipality: fc.Nombre,
		Province:     fc.Provincia,
		IssuedAt:     fc.Elaborado,
	}

	for i, dia := range fc.Prediccion.Dia {
		if i >= maxForecastDays {
			break
		}
		bulletin.Days = append(bulletin.Days, parseForecastDay(dia))
	}
	return bulletin, nil
}

// Alerts fetches the active CAP warnings for the station's area. A 404 from
// the API means no active warnings and yields an empty, successful result.
func (p *AEMETProvider) Alerts(ctx context.Context) ([]weather.Alert, error) {
	body, err := p.fetchData(ctx, "/avisos_cap/ultimoelaborado/area/"+aemetAlertArea)
	if err != nil {
		if isNotFound(err) || errors.Is(err, errNoData) {
			return nil, nil
		}
		return nil, err
	}

	alerts, err := parseAlerts(body)
	if err != nil {
		return nil, err
	}

	// Keep alerts relevant to the station's province when any mention it.
	filtered := filterAlerts(alerts, "Jaén")
	if len(filtered) > maxAlerts {
		filtered = filtered[:maxAlerts]
	}
	return filtered, nil
}

var errNoData = errors.New("aemet envelope carries no data url")

// fetchData performs the two-step AEMET fetch: request the envelope, then
// follow its datos URL for the actual payload.
func (p *AEMETProvider) fetchData(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := doRequest(ctx, p.client, p.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.baseURL+endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("api_key", p.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Estado int    `json:"estado"`
		Datos  string `json:"datos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
	}
	if envelope.Estado == http.StatusNotFound || envelope.Datos == "" {
		return nil, errNoData
	}
	if envelope.Estado != http.StatusOK {
		return nil, fmt.Errorf("%w: aemet estado %d", weather.ErrProviderUnavailable, envelope.Estado)
	}

	dataResp, err := doRequest(ctx, p.client, p.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, envelope.Datos, nil)
	})
	if err != nil {
		return nil, err
	}
	defer dataResp.Body.Close()

	body, err := io.ReadAll(dataResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}
	return body, nil
}

type aemetForecast struct {
	Nombre     string `json:"nombre"`
	Provincia  string `json:"provincia"`
	Elaborado  string `json:"elaborado"`
	Prediccion struct {
		Dia []aemetDay `json:"dia"`
	} `json:"prediccion"`
}

type aemetDay struct {
	Fecha       string `json:"fecha"`
	Temperatura struct {
		Maxima *float64 `json:"maxima"`
		Minima *float64 `json:"minima"`
	} `json:"temperatura"`
	EstadoCielo []struct {
		Periodo     string `json:"periodo"`
		Descripcion string `json:"descripcion"`
	} `json:"estadoCielo"`
	ProbPrecipitacion []struct {
		Value json.Number `json:"value"`
	} `json:"probPrecipitacion"`
	Viento []struct {
		Velocidad *float64 `json:"velocidad"`
		Direccion string   `json:"direccion"`
	} `json:"viento"`
	HumedadRelativa struct {
		Maxima *int `json:"maxima"`
		Minima *int `json:"minima"`
	} `json:"humedadRelativa"`
}

func parseForecastDay(dia aemetDay) weather.ForecastDay {
	day := weather.ForecastDay{
		Date:           dia.Fecha,
		TempMaxC:       dia.Temperatura.Maxima,
		TempMinC:       dia.Temperatura.Minima,
		HumidityMaxPct: dia.HumedadRelativa.Maxima,
		HumidityMinPct: dia.HumedadRelativa.Minima,
	}

	// Prefer the midday sky condition; fall back to the first one given.
	for _, ec := range dia.EstadoCielo {
		if ec.Periodo == "12-24" || ec.Periodo == "00-24" || ec.Periodo == "" {
			day.Sky = ec.Descripcion
			break
		}
	}
	if day.Sky == "" && len(dia.EstadoCielo) > 0 {
		day.Sky = dia.EstadoCielo[0].Descripcion
	}

	// Report the worst-case precipitation probability across the day's periods.
	var maxProb *int
	for _, pp := range dia.ProbPrecipitacion {
		n, err := strconv.Atoi(string(pp.Value))
		if err != nil {
			continue
		}
		if maxProb == nil || n > *maxProb {
			v := n
			maxProb = &v
		}
	}
	day.PrecipProbPct = maxProb

	for _, v := range dia.Viento {
		if v.Velocidad != nil {
			day.WindSpeedKph = v.Velocidad
			day.WindDirection = v.Direccion
			break
		}
	}

	return day
}

// parseAlerts accepts either a JSON array of alerts or a stream of CAP XML
// alert documents, which is what the avisos_cap endpoint actually serves.
func parseAlerts(body []byte) ([]weather.Alert, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' || trimmed[0] == '{' {
		var alerts []weather.Alert
		if err := json.Unmarshal(trimmed, &alerts); err == nil {
			return alerts, nil
		}
		var single weather.Alert
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
		}
		return []weather.Alert{single}, nil
	}

	return parseCAP(trimmed)
}

type capDocument struct {
	XMLName xml.Name  `xml:"alert"`
	Info    []capInfo `xml:"info"`
}

type capInfo struct {
	Language    string `xml:"language"`
	Event       string `xml:"event"`
	Headline    string `xml:"headline"`
	Description string `xml:"description"`
	Severity    string `xml:"severity"`
}

func parseCAP(body []byte) ([]weather.Alert, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var alerts []weather.Alert
	for {
		var doc capDocument
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(alerts) > 0 {
				break
			}
			return nil, fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
		}

		for _, info := range doc.Info {
			// CAP documents repeat each info block per language.
			if info.Language != "" && !strings.HasPrefix(info.Language, "es") {
				continue
			}
			severity := info.Severity
			if severity == "" {
				severity = "Unknown"
			}
			alerts = append(alerts, weather.Alert{
				Event:       info.Event,
				Headline:    info.Headline,
				Description: info.Description,
				Severity:    severity,
			})
		}
	}
	return alerts, nil
}

// filterAlerts narrows the list to alerts mentioning the given area when at
// least one does; otherwise the full list is kept.
func filterAlerts(alerts []weather.Alert, area string) []weather.Alert {
	var matched []weather.Alert
	for _, a := range alerts {
		if strings.Contains(a.Headline, area) || strings.Contains(a.Description, area) {
			matched = append(matched, a)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	return alerts
}
