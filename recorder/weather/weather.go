package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// Daytime is weather averaged over the hours between sunrise and sunset.
type Daytime struct {
	AvgTemp           float64
	LowTemp           float64
	HighTemp          float64
	CurrentTemp       float64
	CloudCover        float64 // percent
	DaylightHours     float64
	Description       string
	PrecipType        string
	PrecipProbability float64 // percent
}

type dataPoint struct {
	Time              int64    `json:"time"`
	Temperature       *float64 `json:"temperature"`
	CloudCover        *float64 `json:"cloudCover"`
	Summary           string   `json:"summary"`
	SunriseTime       int64    `json:"sunriseTime"`
	SunsetTime        int64    `json:"sunsetTime"`
	PrecipType        string   `json:"precipType"`
	PrecipProbability *float64 `json:"precipProbability"`
}

type forecast struct {
	Currently dataPoint `json:"currently"`
	Hourly    struct {
		Data []dataPoint `json:"data"`
	} `json:"hourly"`
	Daily struct {
		Data []dataPoint `json:"data"`
	} `json:"daily"`
}

// Client talks to a Dark Sky compatible forecast API.
type Client struct {
	conf       common.WeatherConfig
	httpClient *http.Client
}

func NewClient(conf common.WeatherConfig) *Client {
	if conf.Latitude == 0 && conf.Longitude == 0 {
		// Statue of Liberty.
		conf.Latitude, conf.Longitude = 40.689249, -74.0445
	}
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{conf: conf, httpClient: &http.Client{Timeout: timeout}}
}

// Daytime returns the daytime weather of the day containing t.
func (c *Client) Daytime(ctx context.Context, t time.Time) (*Daytime, error) {
	if c.conf.ApiKey == "" {
		return nil, errors.New("weather api key is not configured")
	}
	url := fmt.Sprintf("%s/forecast/%s/%f,%f,%d?exclude=minutely,alerts,flags",
		c.conf.BaseUrl, c.conf.ApiKey, c.conf.Latitude, c.conf.Longitude, t.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build weather request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "weather request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read weather response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("weather api returned %s", resp.Status)
	}

	var f forecast
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, errors.Wrapf(err, "cannot decode weather data response: %.200s", body)
	}
	glog.V(2).Infof("Weather details: %+v", f)
	return summarize(&f)
}

func summarize(f *forecast) (*Daytime, error) {
	if len(f.Daily.Data) == 0 {
		return nil, errors.New("weather response has no daily data")
	}
	day := f.Daily.Data[0]
	daytime := func(p dataPoint) bool {
		return p.Time > day.SunriseTime && p.Time < day.SunsetTime
	}

	w := &Daytime{
		Description:   day.Summary,
		DaylightHours: float64(day.SunsetTime-day.SunriseTime) / 3600,
		PrecipType:    "none",
	}
	if f.Currently.Temperature != nil {
		w.CurrentTemp = *f.Currently.Temperature
	}
	if day.PrecipType != "" {
		w.PrecipType = day.PrecipType
	}
	if day.PrecipProbability != nil {
		w.PrecipProbability = *day.PrecipProbability * 100
	}

	var cloudTotal, tempTotal float64
	var cloudCount, tempCount int
	for _, h := range f.Hourly.Data {
		if !daytime(h) {
			continue
		}
		if h.CloudCover != nil {
			cloudTotal += *h.CloudCover
			cloudCount++
		}
		if h.Temperature != nil {
			temp := *h.Temperature
			if tempCount == 0 || temp < w.LowTemp {
				w.LowTemp = temp
			}
			if tempCount == 0 || temp > w.HighTemp {
				w.HighTemp = temp
			}
			tempTotal += temp
			tempCount++
		}
	}
	if cloudCount > 0 {
		w.CloudCover = 100 * cloudTotal / float64(cloudCount)
	}
	if tempCount > 0 {
		w.AvgTemp = tempTotal / float64(tempCount)
	}
	return w, nil
}
