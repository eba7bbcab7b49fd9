package domain

// ForecastRecord is one MET Malaysia daily forecast for a named location.
type ForecastRecord struct {
	LocationID        string   `json:"location_id"`
	LocationName      string   `json:"location_name"`
	Date              string   `json:"date"`
	SummaryForecast   string   `json:"summary_forecast,omitempty"`
	MorningForecast   string   `json:"morning_forecast,omitempty"`
	AfternoonForecast string   `json:"afternoon_forecast,omitempty"`
	NightForecast     string   `json:"night_forecast,omitempty"`
	MinTemp           *float64 `json:"min_temp,omitempty"`
	MaxTemp           *float64 `json:"max_temp,omitempty"`
}

// WarningRecord is one MET Malaysia weather warning. The API renders area
// lists inconsistently (string, list, or nested object), so Areas is already
// flattened by the client.
type WarningRecord struct {
	Heading    string   `json:"heading,omitempty"`
	Text       string   `json:"text,omitempty"`
	Areas      []string `json:"areas,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	ValidFrom  string   `json:"valid_from,omitempty"`
	ValidTo    string   `json:"valid_to,omitempty"`
	IssuedDate string   `json:"issued_date,omitempty"`
}

// WeatherNumbers are the numeric daily values Open-Meteo contributes to a
// forecast feature. Nil means the provider had no value; existing properties
// are never overwritten with nil.
type WeatherNumbers struct {
	TempMin    *float64 `json:"temp_min"`
	TempMax    *float64 `json:"temp_max"`
	RainChance *float64 `json:"rain_chance"`
	WindSpeed  *float64 `json:"wind_speed"`
	WindDir    *float64 `json:"wind_dir"`
	Humidity   *float64 `json:"humidity"`
}

// Location is a geocoded forecast location, one row of locations.csv.
type Location struct {
	ID   string
	Name string
	Geo  Geo
}
