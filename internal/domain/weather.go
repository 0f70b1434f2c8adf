package domain

// WeatherHistoryCap is the maximum number of samples retained per city.
const WeatherHistoryCap = 24

// WeatherSample is a snapshot of temperature and humidity at a point in time.
type WeatherSample struct {
	TimestampUnixMs int64   `json:"timestamp"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
}

// WeatherRecord represents the latest observed weather for a single city.
type WeatherRecord struct {
	City        string          `json:"city"`
	Temperature float64         `json:"temperature"`
	Humidity    float64         `json:"humidity"`
	Conditions  string          `json:"conditions"`
	History     []WeatherSample `json:"history,omitempty"`
}
