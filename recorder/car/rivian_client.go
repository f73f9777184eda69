package car

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

const vehicleStateQuery = `query GetVehicleState($vehicleID: String!) {
  vehicleState(id: $vehicleID) {
    powerState { value }
    batteryLevel { value }
    distanceToEmpty { value }
    vehicleMileage { value }
    otaCurrentVersion { value }
    chargerState { value }
    chargerStatus { value }
  }
}`

type stringValue struct {
	Value string `json:"value"`
}

type floatValue struct {
	Value float64 `json:"value"`
}

type rivianVehicleState struct {
	PowerState        stringValue `json:"powerState"`
	BatteryLevel      floatValue  `json:"batteryLevel"`
	DistanceToEmpty   floatValue  `json:"distanceToEmpty"`
	VehicleMileage    floatValue  `json:"vehicleMileage"`
	OtaCurrentVersion stringValue `json:"otaCurrentVersion"`
	ChargerState      stringValue `json:"chargerState"`
	ChargerStatus     stringValue `json:"chargerStatus"`
}

type graphQLRequest struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type vehicleStateResponse struct {
	Data struct {
		VehicleState *rivianVehicleState `json:"vehicleState"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type RivianFetcher struct {
	conf       common.Vehicle
	httpClient *http.Client
}

// NewRivianFetcher returns a Fetcher that queries the Rivian GraphQL gateway with already issued
// session tokens.
func NewRivianFetcher(conf common.Vehicle) *RivianFetcher {
	return &RivianFetcher{
		conf:       conf,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RivianFetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	state, err := c.vehicleState(ctx)
	if err != nil {
		return nil, err
	}
	return newRivianSnapshot(state), nil
}

func (c *RivianFetcher) Raw(ctx context.Context) (interface{}, error) {
	return c.vehicleState(ctx)
}

func (c *RivianFetcher) Power(ctx context.Context) (*PowerState, error) {
	state, err := c.vehicleState(ctx)
	if err != nil {
		return nil, err
	}
	power := state.PowerState.Value
	return &PowerState{
		State:    power,
		Awake:    power != "sleep" && power != "standby",
		Driving:  power == "go" || power == "reverse",
		Charging: state.ChargerStatus.Value == "chrgr_sts_connected_charging",
		Snapshot: newRivianSnapshot(state),
	}, nil
}

func (c *RivianFetcher) vehicleState(ctx context.Context) (*rivianVehicleState, error) {
	auth := c.conf.RivianAuth
	body, err := json.Marshal(graphQLRequest{
		OperationName: "GetVehicleState",
		Query:         vehicleStateQuery,
		Variables:     map[string]interface{}{"vehicleID": c.conf.VehicleId},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode vehicle state query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build vehicle state request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Apollographql-Client-Name", "com.rivian.ios.consumer-apollo-ios")
	req.Header.Set("A-Sess", auth.AppSessionToken)
	req.Header.Set("U-Sess", auth.UserSessionToken)
	req.Header.Set("Csrf-Token", auth.CsrfToken)
	if auth.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "vehicle state request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read vehicle state response")
	}
	if resp.StatusCode >= 300 {
		return nil, errors.WithStack(&UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 200)})
	}

	var decoded vehicleStateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, errors.Wrap(err, "cannot decode vehicle state response")
	}
	if len(decoded.Errors) > 0 {
		e := decoded.Errors[0]
		if e.Extensions.Code == "UNAUTHENTICATED" {
			return nil, errors.WithStack(&UpstreamError{StatusCode: http.StatusUnauthorized, Body: e.Message})
		}
		return nil, errors.Errorf("vehicle state query failed: %s (%s)", e.Message, e.Extensions.Code)
	}
	if decoded.Data.VehicleState == nil {
		return nil, errors.New("vehicle state missing from response")
	}
	glog.V(1).Infof("Rivian vehicle state: %+v", *decoded.Data.VehicleState)
	return decoded.Data.VehicleState, nil
}

func newRivianSnapshot(state *rivianVehicleState) *Snapshot {
	return &Snapshot{
		Timestamp:       time.Now(),
		Odometer:        common.MetersToMiles(state.VehicleMileage.Value),
		StateOfCharge:   state.BatteryLevel.Value,
		EstimatedRange:  state.DistanceToEmpty.Value,
		RatedRange:      state.DistanceToEmpty.Value,
		FirmwareVersion: state.OtaCurrentVersion.Value,
		ChargingState:   rivianChargingState(state.ChargerState.Value, state.ChargerStatus.Value),
	}
}

func rivianChargingState(chargerState, chargerStatus string) ChargingState {
	switch chargerState {
	case "charging_active":
		return Charging
	case "charging_complete":
		return Complete
	}
	switch chargerStatus {
	case "chrgr_sts_connected_charging":
		return Charging
	case "chrgr_sts_connected_no_chrg":
		return Connected
	}
	return Disconnected
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
