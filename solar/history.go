// Package solar tracks daily solar production and posts daily, monthly, yearly and weekly
// summaries.
package solar

import (
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/state"
)

const neverPosted = "20010101"

// Day is one day of production.
type Day struct {
	Production float64 `json:"production"`
	Cloud      float64 `json:"cloud,omitempty"`
	Daylight   float64 `json:"daylight,omitempty"`
	// WeatherAPI marks cloud and daylight values taken from the weather service.
	WeatherAPI bool `json:"weather_api,omitempty"`
}

// Config remembers which periodic posts were already made. Monthly and yearly keys are YYYYMM.
type Config struct {
	LastDailyPost   string `json:"lastdailytweet"`
	LastMonthlyPost string `json:"lastmonthlytweet,omitempty"`
	LastYearlyPost  string `json:"lastyearlytweet,omitempty"`
}

type History struct {
	Config Config         `json:"config"`
	Data   map[string]Day `json:"data"`
}

func NewHistory() *History {
	h := &History{}
	h.fillDefaults()
	return h
}

func (h *History) fillDefaults() {
	if h.Config.LastDailyPost == "" {
		h.Config.LastDailyPost = neverPosted
	}
	if h.Data == nil {
		h.Data = make(map[string]Day)
	}
}

func (h *History) Validate() error {
	for key, day := range h.Data {
		if !clock.IsDayKey(key) {
			return errors.Errorf("invalid date key %q", key)
		}
		if day.Production < 0 {
			return errors.Errorf("negative production on %s", key)
		}
	}
	return nil
}

// LoadHistory reads the solar history, creating an empty one when the file does not exist.
func LoadHistory(store *state.FileStore) (*History, error) {
	h := &History{}
	if _, err := store.Load(h); err != nil {
		return nil, err
	}
	h.fillDefaults()
	if err := h.Validate(); err != nil {
		return nil, errors.Wrapf(state.ErrCorrupt, "%s: %v", store.Path(), err)
	}
	return h, nil
}
