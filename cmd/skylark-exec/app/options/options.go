// Package options defines the skylark-exec configuration surface: generic
// transport/server options plus the vehicle-level task parameters.
package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/skylark-uav/skylark/internal/daemon"
	"github.com/skylark-uav/skylark/internal/exec"
	"github.com/skylark-uav/skylark/internal/topics"
	"github.com/skylark-uav/skylark/pkg/log"
	genericoptions "github.com/skylark-uav/skylark/pkg/options"
)

// Options aggregates every option group of the daemon.
type Options struct {
	Mqtt    *genericoptions.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	Http    *genericoptions.HttpOptions `json:"http" mapstructure:"http"`
	Vehicle *VehicleOptions             `json:"vehicle" mapstructure:"vehicle"`
	Log     *log.Options                `json:"log" mapstructure:"log"`
}

// VehicleOptions carries the supervisory parameters: tick cadences, health
// thresholds, arming behavior and the autonomy flight profile.
type VehicleOptions struct {
	ExecTickInterval time.Duration `json:"exec-tick-interval" mapstructure:"exec-tick-interval"`
	AutoTickInterval time.Duration `json:"auto-tick-interval" mapstructure:"auto-tick-interval"`

	BatteryMinPercent float64       `json:"battery-min-percent" mapstructure:"battery-min-percent"`
	CommErrorsMax     float64       `json:"comm-errors-max" mapstructure:"comm-errors-max"`
	LockTimeout       time.Duration `json:"lock-timeout" mapstructure:"lock-timeout"`
	ForceArm          bool          `json:"force-arm" mapstructure:"force-arm"`

	TakeoffAltitude float64 `json:"takeoff-altitude" mapstructure:"takeoff-altitude"`
	GuidedMode      string  `json:"guided-mode" mapstructure:"guided-mode"`
	InitialLat      float64 `json:"initial-lat" mapstructure:"initial-lat"`
	InitialLon      float64 `json:"initial-lon" mapstructure:"initial-lon"`
	InitialAlt      float64 `json:"initial-alt" mapstructure:"initial-alt"`
}

var _ genericoptions.IOptions = (*VehicleOptions)(nil)

// NewVehicleOptions creates a VehicleOptions with default parameters.
func NewVehicleOptions() *VehicleOptions {
	execDefaults := exec.NewConfig()
	return &VehicleOptions{
		ExecTickInterval:  500 * time.Millisecond,
		AutoTickInterval:  500 * time.Millisecond,
		BatteryMinPercent: execDefaults.BatteryMinPercent,
		CommErrorsMax:     execDefaults.CommErrorsMax,
		LockTimeout:       60 * time.Second,
		ForceArm:          execDefaults.ForceArm,
		TakeoffAltitude:   execDefaults.Auto.TakeoffAltitude,
		GuidedMode:        execDefaults.Auto.GuidedMode,
	}
}

// Validate checks the vehicle parameters for obvious misconfiguration.
func (o *VehicleOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.ExecTickInterval <= 0 {
		errs = append(errs, fmt.Errorf("vehicle.exec-tick-interval must be positive, got %s", o.ExecTickInterval))
	}
	if o.AutoTickInterval <= 0 {
		errs = append(errs, fmt.Errorf("vehicle.auto-tick-interval must be positive, got %s", o.AutoTickInterval))
	}
	if o.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("vehicle.lock-timeout must be positive, got %s", o.LockTimeout))
	}
	if o.TakeoffAltitude <= 0 {
		errs = append(errs, fmt.Errorf("vehicle.takeoff-altitude must be positive, got %.1f", o.TakeoffAltitude))
	}
	if o.GuidedMode == "" {
		errs = append(errs, fmt.Errorf("vehicle.guided-mode must not be empty"))
	}
	return errs
}

// AddFlags adds vehicle flags to the specified FlagSet.
func (o *VehicleOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.ExecTickInterval, "vehicle.exec-tick-interval", o.ExecTickInterval, "Scheduling cycle of the outer supervisor.")
	fs.DurationVar(&o.AutoTickInterval, "vehicle.auto-tick-interval", o.AutoTickInterval, "Scheduling cycle of the inner autonomy supervisor.")
	fs.Float64Var(&o.BatteryMinPercent, "vehicle.battery-min-percent", o.BatteryMinPercent, "Battery floor in percent below which the vehicle is unhealthy.")
	fs.Float64Var(&o.CommErrorsMax, "vehicle.comm-errors-max", o.CommErrorsMax, "Cumulative comm-error ceiling above which the vehicle is unhealthy.")
	fs.DurationVar(&o.LockTimeout, "vehicle.lock-timeout", o.LockTimeout, "Bounded wait for a positioning lock before demoting.")
	fs.BoolVar(&o.ForceArm, "vehicle.force-arm", o.ForceArm, "Send the force-arm magic with arm commands (bench vehicles only).")
	fs.Float64Var(&o.TakeoffAltitude, "vehicle.takeoff-altitude", o.TakeoffAltitude, "Target takeoff altitude in meters.")
	fs.StringVar(&o.GuidedMode, "vehicle.guided-mode", o.GuidedMode, "Flight controller mode name for guided flight.")
	fs.Float64Var(&o.InitialLat, "vehicle.initial-lat", o.InitialLat, "Latitude of the initial guided setpoint.")
	fs.Float64Var(&o.InitialLon, "vehicle.initial-lon", o.InitialLon, "Longitude of the initial guided setpoint.")
	fs.Float64Var(&o.InitialAlt, "vehicle.initial-alt", o.InitialAlt, "Altitude of the initial guided setpoint in meters.")
}

// NewOptions creates an Options object with default parameters.
func NewOptions() *Options {
	return &Options{
		Mqtt:    genericoptions.NewMqttOptions(),
		Http:    genericoptions.NewHttpOptions(),
		Vehicle: NewVehicleOptions(),
		Log:     log.NewOptions(),
	}
}

// AddFlags adds all option groups to the given FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Mqtt.AddFlags(fs)
	o.Http.AddFlags(fs)
	o.Vehicle.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Complete fills in any fields not set that are required to have valid data.
func (o *Options) Complete() error {
	return nil
}

// Validate validates all option groups.
func (o *Options) Validate() []error {
	errs := []error{}
	errs = append(errs, o.Mqtt.Validate()...)
	errs = append(errs, o.Http.Validate()...)
	errs = append(errs, o.Vehicle.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errs
}

// Config resolves the options into the daemon configuration, converting
// duration-based bounds into tick counts at the configured cadence.
func (o *Options) Config() (*daemon.Config, error) {
	execCfg := exec.NewConfig()
	execCfg.BatteryMinPercent = o.Vehicle.BatteryMinPercent
	execCfg.CommErrorsMax = o.Vehicle.CommErrorsMax
	execCfg.ForceArm = o.Vehicle.ForceArm
	execCfg.LockTimeoutTicks = int(o.Vehicle.LockTimeout / o.Vehicle.ExecTickInterval)

	execCfg.Auto.TakeoffAltitude = o.Vehicle.TakeoffAltitude
	execCfg.Auto.GuidedMode = o.Vehicle.GuidedMode
	execCfg.Auto.InitialPosition = topics.Position{
		Lat: o.Vehicle.InitialLat,
		Lon: o.Vehicle.InitialLon,
		Alt: o.Vehicle.InitialAlt,
	}

	return &daemon.Config{
		Mqtt:             o.Mqtt,
		Http:             o.Http,
		Exec:             execCfg,
		ExecTickInterval: o.Vehicle.ExecTickInterval,
		AutoTickInterval: o.Vehicle.AutoTickInterval,
	}, nil
}
