package domain

import "fmt"

// StationInfo carries the static labels stamped on every Reading.
type StationInfo struct {
	DeviceType string
	Name       string
}

// AggregateReading merges observations into a Reading for deviceID.
//
// Observations are walked in the order given, which callers keep equal to
// [Parameters] order. The first non-nil timestamp becomes the reading
// timestamp; every non-nil value is copied to the field named by its key.
// An unknown key is a programming fault and is returned as an error.
func AggregateReading(deviceID string, info StationInfo, observations []Observation) (Reading, error) {
	reading := Reading{
		DeviceID:   deviceID,
		DeviceType: info.DeviceType,
		Name:       info.Name,
	}

	for _, obs := range observations {
		field, err := reading.field(obs.Key)
		if err != nil {
			return Reading{}, err
		}
		if reading.Timestamp == nil && obs.Timestamp != nil {
			ts := *obs.Timestamp
			reading.Timestamp = &ts
		}
		if obs.Value != nil {
			v := *obs.Value
			*field = &v
		}
	}

	return reading, nil
}

func (r *Reading) field(key ParameterKey) (**float64, error) {
	switch key {
	case Temperature:
		return &r.Temperature, nil
	case WindDirection:
		return &r.WindDirection, nil
	case WindSpeed:
		return &r.WindSpeed, nil
	case WindGustMax:
		return &r.WindGustMax, nil
	case Visibility:
		return &r.Visibility, nil
	default:
		return nil, fmt.Errorf("aggregate reading: unknown parameter %q", key)
	}
}
