package state

import (
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
)

type FirmwareRecord struct {
	Version      string `json:"version"`
	DateDetected string `json:"date_detected"`
}

// History is the persisted document of one vehicle tool.
type History struct {
	DailyStateAM map[string]car.Snapshot `json:"daily_state_am"`
	DailyStatePM map[string]car.Snapshot `json:"daily_state_pm"`
	// DayCharges counts charge cycles started since the last yesterday report.
	DayCharges int  `json:"day_charges"`
	Charging   bool `json:"charging"`
	// MileageTweet is the odometer reading at the last announced milestone.
	MileageTweet float64         `json:"mileage_tweet"`
	Firmware     *FirmwareRecord `json:"firmware,omitempty"`
}

func NewHistory() *History {
	h := &History{}
	h.fillDefaults()
	return h
}

func (h *History) fillDefaults() {
	if h.DailyStateAM == nil {
		h.DailyStateAM = make(map[string]car.Snapshot)
	}
	if h.DailyStatePM == nil {
		h.DailyStatePM = make(map[string]car.Snapshot)
	}
}

func (h *History) Validate() error {
	if h.DayCharges < 0 {
		return errors.Errorf("day_charges is negative: %d", h.DayCharges)
	}
	for _, bucket := range []map[string]car.Snapshot{h.DailyStateAM, h.DailyStatePM} {
		for key := range bucket {
			if !clock.IsDayKey(key) {
				return errors.Errorf("invalid date key %q", key)
			}
		}
	}
	if h.Firmware != nil && h.Firmware.DateDetected != "" && !clock.IsDayKey(h.Firmware.DateDetected) {
		return errors.Errorf("invalid firmware date_detected %q", h.Firmware.DateDetected)
	}
	return nil
}

// Record stores s in the AM or PM bucket of its timestamp, replacing an earlier reading from the
// same half day.
func (h *History) Record(s car.Snapshot) {
	s.Date = clock.DayKey(s.Timestamp)
	s.HalfDay = clock.HalfDay(s.Timestamp)
	if s.HalfDay == "am" {
		h.DailyStateAM[s.Date] = s
	} else {
		h.DailyStatePM[s.Date] = s
	}
}

// LoadHistory reads a vehicle history. Fields missing from older files get their defaults.
func LoadHistory(store *FileStore) (*History, error) {
	h := &History{}
	if _, err := store.Load(h); err != nil {
		return nil, err
	}
	h.fillDefaults()
	if err := h.Validate(); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%s: %v", store.Path(), err)
	}
	return h, nil
}
