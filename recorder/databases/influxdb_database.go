package databases

import (
	"context"

	"github.com/golang/glog"
	influxdb "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
)

type influxDbDatabase struct {
	conn     influxdb.Client
	database string
}

func (this *influxDbDatabase) Insert(ctx context.Context, carName string, snapshot car.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	glog.Infof("Recording measurement to influxdb")

	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  this.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	// Indexed tags
	tags := map[string]string{
		"car_name": carName,
	}

	// Charging
	chargeFields := map[string]interface{}{
		"state":               string(snapshot.ChargingState),
		"batt_level":          snapshot.StateOfCharge,
		"estimated_range":     snapshot.EstimatedRange,
		"rated_range":         snapshot.RatedRange,
		"charge_energy_added": snapshot.ChargeEnergyAdded,
	}
	if snapshot.ChargeMilesAddedRated > 0 {
		chargeFields["charge_miles_added"] = snapshot.ChargeMilesAddedRated
	}
	charge, err := influxdb.NewPoint("charge", tags, chargeFields, snapshot.Timestamp)
	if err != nil {
		return err
	}
	bp.AddPoint(charge)

	odometer, err := influxdb.NewPoint(
		"odometer",
		tags,
		map[string]interface{}{
			"odometer": snapshot.Odometer,
			"version":  snapshot.FirmwareVersion,
		}, snapshot.Timestamp)
	if err != nil {
		return err
	}
	bp.AddPoint(odometer)

	err = this.conn.Write(bp)
	if err != nil {
		return errors.Wrap(err, "influxdb write failed")
	}

	glog.Info("Writing to InfluxDB successful")
	return nil
}

func (this *influxDbDatabase) Close() error {
	return this.conn.Close()
}

func OpenInfluxDbDatabase(conf common.InfluxDbConfig) (Database, error) {
	// Create a new HTTPClient
	c, err := influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     conf.Address,
		Username: conf.Username,
		Password: conf.Password,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open influxdb at %s", conf.Address)
	}

	return &influxDbDatabase{
		conn:     c,
		database: conf.Database,
	}, nil
}
