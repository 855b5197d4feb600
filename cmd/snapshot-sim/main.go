// Command snapshot-sim resolves canonical readings from saved snapshot
// documents. It is a development aid for checking how recorded vendor
// payloads normalize without talking to the cloud.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/resolve"
	"github.com/solarmon/go-dess/internal/service"
)

func main() {
	lastDataFile := flag.String("last-data", "", "Path to a saved last-data document (required)")
	energyFlowFile := flag.String("energy-flow", "", "Path to a saved energy-flow document (optional)")
	ctrlValues := flag.String("ctrl-values", "", "Comma-separated alias=value pairs for the control-value cache")
	pretty := flag.Bool("pretty", true, "Indent the JSON output")
	flag.Parse()

	if *lastDataFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	lastData, err := loadDocument(*lastDataFile)
	if err != nil {
		log.Fatalf("failed to load last-data document: %v", err)
	}

	energyFlow := jsontree.Null()
	if *energyFlowFile != "" {
		energyFlow, err = loadDocument(*energyFlowFile)
		if err != nil {
			log.Fatalf("failed to load energy-flow document: %v", err)
		}
	}

	outputPriority, found := service.ExtractOutputPriority(lastData)
	if found {
		log.Printf("output priority from telemetry: %s", outputPriority)
	}

	snapshot := service.BuildSnapshot(lastData, energyFlow, outputPriority, parseCtrlValues(*ctrlValues))
	readings := resolve.Readings(snapshot)

	var out []byte
	if *pretty {
		out, err = json.MarshalIndent(readings, "", "  ")
	} else {
		out, err = json.Marshal(readings)
	}
	if err != nil {
		log.Fatalf("failed to encode readings: %v", err)
	}

	fmt.Println(string(out))
}

// loadDocument parses a JSON file into an order-preserving document.
func loadDocument(path string) (jsontree.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return jsontree.Null(), err
	}
	return jsontree.Parse(raw)
}

// parseCtrlValues parses "alias=value,alias=value" into a cache map.
func parseCtrlValues(s string) map[string]string {
	if s == "" {
		return nil
	}
	values := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			log.Printf("skipping malformed ctrl-value pair %q", pair)
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}
