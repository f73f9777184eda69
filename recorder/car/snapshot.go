package car

import (
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/kodek/tesla"
)

type ChargingState string

const (
	Disconnected ChargingState = "disconnected"
	Connected    ChargingState = "connected"
	Charging     ChargingState = "charging"
	Complete     ChargingState = "complete"
)

// Snapshot is one point-in-time reading of a vehicle. The JSON names match the existing data files.
type Snapshot struct {
	Timestamp time.Time `json:"-"`

	Date                  string        `json:"date,omitempty"`
	HalfDay               string        `json:"half_day,omitempty"`
	Odometer              float64       `json:"odometer"`
	StateOfCharge         float64       `json:"soc"`
	EstimatedRange        float64       `json:"estimated_range"`
	RatedRange            float64       `json:"rated_range"`
	IdealRange            float64       `json:"ideal_range,omitempty"`
	ChargeEnergyAdded     float64       `json:"charge_energy_added"`
	ChargeMilesAddedRated float64       `json:"charge_miles_added_rated,omitempty"`
	ChargeMilesAddedIdeal float64       `json:"charge_miles_added_ideal,omitempty"`
	FirmwareVersion       string        `json:"version,omitempty"`
	ChargingState         ChargingState `json:"charging_state,omitempty"`
}

func (s *Snapshot) IsCharging() bool {
	return s.ChargingState == Charging || s.ChargingState == Complete
}

// IsPluggedIn treats an unknown charging state as unplugged.
func (s *Snapshot) IsPluggedIn() bool {
	return s.ChargingState != "" && s.ChargingState != Disconnected
}

func NewSnapshot(vehicleData *tesla.VehicleData) *Snapshot {
	glog.V(2).Infof("Parsing message: %s", spew.Sdump(vehicleData))
	chargeState := vehicleData.ChargeState
	return &Snapshot{
		Timestamp:             time.Now(),
		Odometer:              vehicleData.VehicleState.Odometer,
		StateOfCharge:         float64(chargeState.BatteryLevel),
		EstimatedRange:        chargeState.EstBatteryRange,
		RatedRange:            chargeState.BatteryRange,
		IdealRange:            chargeState.IdealBatteryRange,
		ChargeEnergyAdded:     chargeState.ChargeEnergyAdded,
		ChargeMilesAddedRated: chargeState.ChargeMilesAddedRated,
		ChargeMilesAddedIdeal: chargeState.ChargeMilesAddedIdeal,
		FirmwareVersion:       firmwareVersion(vehicleData.VehicleState.CarVersion),
		ChargingState:         teslaChargingState(chargeState.ChargingState, chargeState.ChargePortDoorOpen, chargeState.ChargePortLatch),
	}
}

// The version is reported as "2020.12.5 a1b2c3d"; only the first word is kept.
func firmwareVersion(carVersion string) string {
	for i, r := range carVersion {
		if r == ' ' {
			return carVersion[:i]
		}
	}
	return carVersion
}

// The port door and the latch are individually unreliable, so a car is only considered connected
// when either of them agrees.
func teslaChargingState(state string, doorOpen bool, latch string) ChargingState {
	switch state {
	case "Charging", "Starting":
		return Charging
	case "Complete":
		return Complete
	case "Disconnected", "":
		return Disconnected
	}
	if !doorOpen && latch != "Disengaged" {
		return Disconnected
	}
	return Connected
}
