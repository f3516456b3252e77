package domain

// ParameterKey names one physical quantity of a Reading.
type ParameterKey string

const (
	Temperature   ParameterKey = "temperature"
	WindDirection ParameterKey = "wind_direction"
	WindSpeed     ParameterKey = "wind_speed"
	WindGustMax   ParameterKey = "wind_gust_max"
	Visibility    ParameterKey = "visibility"
)

// ParameterSpec binds a ParameterKey to the SMHI parameter id that serves it.
type ParameterSpec struct {
	Key        ParameterKey
	ExternalID string
}

// parameters is the fixed fetch and aggregation order.
var parameters = [...]ParameterSpec{
	{Key: Temperature, ExternalID: "1"},
	{Key: WindDirection, ExternalID: "3"},
	{Key: WindSpeed, ExternalID: "4"},
	{Key: WindGustMax, ExternalID: "21"},
	{Key: Visibility, ExternalID: "6"},
}

// Parameters returns a copy of the five parameter specs in fixed order:
// temperature, wind_direction, wind_speed, wind_gust_max, visibility.
func Parameters() []ParameterSpec {
	out := make([]ParameterSpec, len(parameters))
	copy(out, parameters[:])
	return out
}
