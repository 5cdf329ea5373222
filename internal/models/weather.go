package models

import "encoding/json"

// ForecastPayload mirrors the upstream forecast.json document. Only fields the
// service projects are typed; variable subdocuments (air quality, pollen,
// alerts) stay raw so upstream schema drift never breaks decoding.
type ForecastPayload struct {
	Location Location        `json:"location"`
	Current  Current         `json:"current"`
	Forecast Forecast        `json:"forecast"`
	Alerts   json.RawMessage `json:"alerts,omitempty"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Localtime string  `json:"localtime"`
}

type Current struct {
	TempC      float64         `json:"temp_c"`
	TempF      float64         `json:"temp_f"`
	Condition  Condition       `json:"condition"`
	WindKph    float64         `json:"wind_kph"`
	WindMph    float64         `json:"wind_mph"`
	Humidity   int             `json:"humidity"`
	FeelslikeC float64         `json:"feelslike_c"`
	AirQuality json.RawMessage `json:"air_quality,omitempty"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type Forecast struct {
	Forecastday []ForecastDay `json:"forecastday"`
}

type ForecastDay struct {
	Date  string `json:"date"`
	Day   Day    `json:"day"`
	Astro Astro  `json:"astro"`
}

type Day struct {
	MaxtempC          float64         `json:"maxtemp_c"`
	MintempC          float64         `json:"mintemp_c"`
	AvgtempC          float64         `json:"avgtemp_c"`
	Condition         Condition       `json:"condition"`
	DailyChanceOfRain int             `json:"daily_chance_of_rain"`
	Pollen            json.RawMessage `json:"pollen,omitempty"`
}

type Astro struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// WeatherReport is the reduced response shape served to clients.
type WeatherReport struct {
	City         string          `json:"city"`
	Country      string          `json:"country"`
	TemperatureC float64         `json:"temperature_C"`
	Conditions   string          `json:"conditions"`
	WindKph      float64         `json:"wind_kph"`
	WindMph      float64         `json:"wind_mph"`
	Pollen       json.RawMessage `json:"pollen,omitempty"`
	ForecastDays []ReportDay     `json:"forecast_days"`
}

type ReportDay struct {
	Date       string  `json:"date"`
	MaxTempC   float64 `json:"max_temp_C"`
	MinTempC   float64 `json:"min_temp_C"`
	Conditions string  `json:"conditions"`
}

// BuildReport projects an upstream payload onto the client response shape.
// Missing nested fields come through as zero values or are omitted; the
// projection never fails. Pollen is taken from the first forecast day.
func BuildReport(payload ForecastPayload) WeatherReport {
	report := WeatherReport{
		City:         payload.Location.Name,
		Country:      payload.Location.Country,
		TemperatureC: payload.Current.TempC,
		Conditions:   payload.Current.Condition.Text,
		WindKph:      payload.Current.WindKph,
		WindMph:      payload.Current.WindMph,
		ForecastDays: make([]ReportDay, 0, len(payload.Forecast.Forecastday)),
	}

	if len(payload.Forecast.Forecastday) > 0 {
		report.Pollen = payload.Forecast.Forecastday[0].Day.Pollen
	}

	for _, d := range payload.Forecast.Forecastday {
		report.ForecastDays = append(report.ForecastDays, ReportDay{
			Date:       d.Date,
			MaxTempC:   d.Day.MaxtempC,
			MinTempC:   d.Day.MintempC,
			Conditions: d.Day.Condition.Text,
		})
	}

	return report
}
