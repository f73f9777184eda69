package car

import (
	"context"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/kodek/tesla"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

type teslaFetcher struct {
	conf          common.Vehicle
	tc            *tesla.Client
	cachedVehicle *tesla.Vehicle // Access via getVehicle()
}

// NewTeslaFetcher returns a Fetcher for the configured Tesla. The API session is created on first use.
func NewTeslaFetcher(conf common.Vehicle) Fetcher {
	return &teslaFetcher{conf: conf}
}

func (c *teslaFetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	vehicleData, err := c.vehicleData(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(vehicleData), nil
}

func (c *teslaFetcher) Raw(ctx context.Context) (interface{}, error) {
	return c.vehicleData(ctx)
}

func (c *teslaFetcher) vehicleData(ctx context.Context) (*tesla.VehicleData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vehicle, err := c.getVehicle()
	if err != nil {
		return nil, err
	}

	if _, err = vehicle.Wakeup(); err != nil {
		return nil, wrapTeslaError(err, "wakeup failed")
	}

	vehicleData, err := vehicle.VehicleData()
	if err != nil {
		return nil, wrapTeslaError(err, "vehicle data request failed")
	}
	return vehicleData, nil
}

// Memoizes the tesla.Vehicle lookup on success.
func (c *teslaFetcher) getVehicle() (*tesla.Vehicle, error) {
	if c.cachedVehicle != nil {
		return c.cachedVehicle, nil
	}

	if c.tc == nil {
		tc, err := NewTeslaClientFromConfig(c.conf)
		if err != nil {
			return nil, wrapTeslaError(err, "cannot create Tesla client")
		}
		c.tc = tc
	}

	vehicles, err := c.tc.Vehicles()
	if err != nil {
		return nil, wrapTeslaError(err, "cannot list vehicles")
	}

	for i := range vehicles {
		v := vehicles[i].Vehicle
		if matchesVehicle(v.Vin, v.DisplayName, c.conf) {
			glog.Infof("Found car %q with VIN %s.", v.DisplayName, v.Vin)
			c.cachedVehicle = v
			return v, nil
		}
	}
	return nil, errors.Errorf("no car found with vin %q or name %q in Tesla account", c.conf.Vin, c.conf.Name)
}

func matchesVehicle(vin, displayName string, conf common.Vehicle) bool {
	if conf.Vin != "" {
		return strings.EqualFold(vin, conf.Vin)
	}
	return conf.Name == "" || displayName == conf.Name
}

// The Tesla client reports HTTP failures as errors whose message starts with the response status.
func wrapTeslaError(err error, message string) error {
	msg := err.Error()
	if len(msg) >= 3 {
		if code, convErr := strconv.Atoi(msg[:3]); convErr == nil && code >= 100 && code <= 599 {
			err = &UpstreamError{StatusCode: code, Body: strings.TrimSpace(msg[3:])}
		}
	}
	return errors.Wrap(err, message)
}
