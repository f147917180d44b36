// Command routecheck builds a route from the directions provider and
// reports where a given distance lands on it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samirrijal/mapme/internal/adapters/google"
	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/config"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
	"github.com/samirrijal/mapme/internal/pkg/logging"
)

func main() {
	from := flag.String("from", "", "origin, e.g. \"Land's End, UK\"")
	to := flag.String("to", "", "destination, e.g. \"John o' Groats, UK\"")
	mode := flag.String("mode", "", "travel mode: walking, bicycling or driving (default from config)")
	distance := flag.Float64("distance", 0, "distance along the route in meters")
	geojsonOut := flag.String("geojson", "", "write the route as GeoJSON to this file")
	gpxOut := flag.String("gpx", "", "write the route as GPX to this file")
	flag.Parse()

	if *from == "" || *to == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load("mapme-routecheck")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", "service", "mapme-routecheck")
	if cfg.Google.APIKey == "" {
		log.Fatal("google.api_key is required")
	}
	if *mode == "" {
		*mode = cfg.Google.TravelMode
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := google.NewClient(cfg.Google.APIKey, cfg.Google.BaseURL)
	d, err := client.Directions(ctx, domain.DirectionsRequest{
		Origin:      *from,
		Destination: *to,
		Mode:        domain.TravelMode(*mode),
	})
	if err != nil {
		log.Fatalf("directions: %v", err)
	}

	path, err := geospatial.BuildFromDirections(d)
	if err != nil {
		log.Fatalf("build route: %v", err)
	}

	start, end := path.Start(), path.End()
	fmt.Printf("start:    %s (%.6f, %.6f)\n", start.Address, start.Location.Lat, start.Location.Lon)
	fmt.Printf("end:      %s (%.6f, %.6f)\n", end.Address, end.Location.Lat, end.Location.Lon)
	fmt.Printf("vertices: %d\n", path.Len())
	fmt.Printf("length:   %.0f m (%.2f km)\n", path.TotalLength(), path.TotalLength()/1000)

	if isFlagSet("distance") {
		report(path, *distance)
	}

	if *geojsonOut != "" {
		data, err := geospatial.ToGeoJSON(*from+" to "+*to, path, nil)
		if err != nil {
			log.Fatalf("geojson: %v", err)
		}
		writeFile(*geojsonOut, data)
	}
	if *gpxOut != "" {
		data, err := geospatial.ToGPX(*from+" to "+*to, path)
		if err != nil {
			log.Fatalf("gpx: %v", err)
		}
		writeFile(*gpxOut, data)
	}
}

func report(path *geospatial.RoutePath, meters float64) {
	pt, err := path.Locate(meters)
	switch {
	case errors.Is(err, geospatial.ErrOutOfRange):
		fmt.Printf("point:    %.0f m is past the end of the route\n", meters)
		return
	case err != nil:
		fmt.Printf("point:    %v\n", err)
		return
	}
	idx, err := path.LocateIndex(meters)
	if err != nil {
		fmt.Printf("index:    %v\n", err)
		return
	}
	fmt.Printf("point:    %.6f, %.6f\n", pt.Lat, pt.Lon)
	fmt.Printf("index:    %d (vertex at %.0f m)\n", idx, path.DistanceAt(idx))
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func writeFile(name string, data []byte) {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", name, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", name, len(data))
}
