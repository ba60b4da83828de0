// Command datagen writes a synthetic housing CSV for local training
// runs, shaped like the California housing dataset: eight block-group
// features and a median-house-value target in units of $100,000.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
)

func main() {
	var (
		output = flag.String("output", "data/housing.csv", "Output CSV path")
		rows   = flag.Int("rows", 5000, "Number of samples to generate")
		seed   = flag.Int64("seed", 42, "RNG seed")
	)
	flag.Parse()

	fmt.Printf("Generating %d housing samples...\n", *rows)

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	rng := rand.New(rand.NewSource(*seed))
	fmt.Fprintln(f, "MedInc,HouseAge,AveRooms,AveBedrms,Population,AveOccup,Latitude,Longitude,MedHouseVal")

	for i := 0; i < *rows; i++ {
		medInc := 0.5 + rng.ExpFloat64()*3.5
		houseAge := 1 + rng.Float64()*51
		aveRooms := 3 + rng.Float64()*5
		aveBedrms := 0.85 + rng.Float64()*0.4
		population := 100 + rng.Float64()*3400
		aveOccup := 1.5 + rng.Float64()*3.5
		lat := 32.5 + rng.Float64()*9.5
		lon := -124.3 + rng.Float64()*10.2

		// Income dominates; coastal and newer tracts price higher.
		value := 0.45*medInc +
			0.008*houseAge +
			0.05*aveRooms -
			0.02*(lon+119) +
			rng.NormFloat64()*0.35
		value = math.Max(0.15, math.Min(value, 5.0))

		fmt.Fprintf(f, "%.4f,%.1f,%.4f,%.4f,%.0f,%.4f,%.4f,%.4f,%.4f\n",
			medInc, houseAge, aveRooms, aveBedrms, population, aveOccup, lat, lon, value)
	}

	fmt.Printf("Wrote %s\n", *output)
}
