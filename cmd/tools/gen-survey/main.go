// Command gen-survey generates a synthetic station CSV with Gaussian
// anomalies for fixtures and manual testing.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
)

func main() {
	output := flag.String("o", "survey.csv", "output path")
	lines := flag.Int("lines", 3, "number of survey lines")
	stations := flag.Int("stations", 200, "stations per line")
	channels := flag.Int("channels", 4, "number of channels")
	spacing := flag.Float64("spacing", 1.0, "station spacing")
	bumps := flag.Int("bumps", 2, "anomalies per line")
	noise := flag.Float64("noise", 0.05, "additive noise amplitude")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *output, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"line", "x", "y"}
	for c := 0; c < *channels; c++ {
		header = append(header, fmt.Sprintf("gate%d", c+1))
	}
	if err := w.Write(header); err != nil {
		log.Fatalf("write header: %v", err)
	}

	for l := 0; l < *lines; l++ {
		lineID := 100 + 10*l
		y := float64(l) * 100

		// Each bump appears on every channel with a small position drift per
		// channel, mimicking the depth migration of a real conductor.
		centers := make([]float64, *bumps)
		for b := range centers {
			centers[b] = (0.1 + 0.8*rng.Float64()) * float64(*stations) * *spacing
		}

		for i := 0; i < *stations; i++ {
			x := float64(i) * *spacing
			row := []string{
				strconv.Itoa(lineID),
				strconv.FormatFloat(x, 'f', 2, 64),
				strconv.FormatFloat(y, 'f', 2, 64),
			}
			for c := 0; c < *channels; c++ {
				v := 0.0
				for _, center := range centers {
					d := x - (center + float64(c)*0.5**spacing)
					amp := 10.0 / float64(c+1)
					v += amp * math.Exp(-d*d/(2*25))
				}
				v += *noise * (2*rng.Float64() - 1)
				row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
			}
			if err := w.Write(row); err != nil {
				log.Fatalf("write row: %v", err)
			}
		}
		log.Printf("line %d: %d stations, %d anomalies", lineID, *stations, *bumps)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("flush csv: %v", err)
	}
	log.Printf("Created: %s", *output)
}
