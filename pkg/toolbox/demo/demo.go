// Package demo provides canned weather tools for trying out tool calling
// without external services.
package demo

import (
	"context"
	"fmt"

	"github.com/papercomputeco/reel/pkg/toolbox"
)

const (
	TemperatureTool = "get_city_temperature"
	RainfallTool    = "get_city_rainfall"
)

func cityTemperature(_ context.Context, args toolbox.Args) (any, error) {
	return fmt.Sprintf("The current temperature in %s is 20 degrees Celsius.", args.String("city_name")), nil
}

func cityRainfall(_ context.Context, args toolbox.Args) (any, error) {
	return fmt.Sprintf("The current rainfall in %s is 5.0 mm.", args.String("city_name")), nil
}

// RegisterWeather adds the temperature and rainfall tools to r.
func RegisterWeather(r *toolbox.Registry) error {
	city := toolbox.Params{"city_name": toolbox.String}
	if err := r.Register(TemperatureTool, cityTemperature, "Function used to get the current temperature in a given city", city); err != nil {
		return err
	}
	return r.Register(RainfallTool, cityRainfall, "Function used to get the current rainfall in a given city", city)
}
