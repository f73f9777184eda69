package car

// AssumedState labels what the vehicle is most likely doing from its power report.
type AssumedState string

const (
	Sleeping     AssumedState = "Sleeping"
	Driving      AssumedState = "Driving"
	Idle         AssumedState = "Idle"
	ChargingIdle AssumedState = "Charging"
)

func (p *PowerState) Assumed() AssumedState {
	if !p.Awake {
		return Sleeping
	}
	// A charging car stays awake on its own, so it is not counted as idle.
	if p.Charging {
		return ChargingIdle
	}
	if p.Driving {
		return Driving
	}
	return Idle
}

// DrivingLabel is the sleep log's motion column.
func (p *PowerState) DrivingLabel() string {
	if p.Driving {
		return "Driving"
	}
	return "Parked"
}
