package domain

import (
	"fmt"
	"strings"
	"time"
)

type SensorReading struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Temperature string     `json:"temperature"`
	Humidity    string     `json:"humidity"`
	Pressure    string     `json:"pressure"`
	Vibration   string     `json:"vibration"`
	AirQuality  string     `json:"airQuality"`
	Timestamp   *time.Time `json:"timestamp,omitempty" gorm:"index"`
}

func (SensorReading) TableName() string {
	return "sensor_readings"
}

func NewSensorReading(temperature, humidity, pressure, vibration, airQuality string, timestamp *time.Time) SensorReading {
	return SensorReading{
		Temperature: temperature,
		Humidity:    humidity,
		Pressure:    pressure,
		Vibration:   vibration,
		AirQuality:  airQuality,
		Timestamp:   timestamp,
	}
}

// Field names one of the five measured values of a SensorReading.
type Field string

const (
	Temperature Field = "temperature"
	Humidity    Field = "humidity"
	Pressure    Field = "pressure"
	Vibration   Field = "vibration"
	AirQuality  Field = "airQuality"
)

var columnNames map[Field]string = map[Field]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	Pressure:    "pressure",
	Vibration:   "vibration",
	AirQuality:  "air_quality",
}

func ParseField(name string) (Field, error) {
	for f := range columnNames {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sensor field %q", name)
}

// Column returns the database column backing the field, or an empty string
// for an unknown field.
func (f Field) Column() string {
	return columnNames[f]
}

// Value returns the text stored in the given field of the reading.
func (r SensorReading) Value(f Field) string {
	switch f {
	case Temperature:
		return r.Temperature
	case Humidity:
		return r.Humidity
	case Pressure:
		return r.Pressure
	case Vibration:
		return r.Vibration
	case AirQuality:
		return r.AirQuality
	}
	return ""
}
