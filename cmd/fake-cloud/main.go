// Command fake-cloud serves a canned vendor monitoring API for local
// development. Each API action is answered from a JSON file in the data
// directory named after the action, wrapped in the standard response
// envelope. Control writes are accepted and logged.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

type fakeCloud struct {
	dataDir string
	verbose bool
}

func main() {
	addr := flag.String("addr", ":9090", "Address to listen on")
	dataDir := flag.String("data", "testdata", "Directory with canned <action>.json documents")
	verbose := flag.Bool("verbose", false, "Log full request parameters")
	flag.Parse()

	if _, err := os.Stat(*dataDir); err != nil {
		log.Fatalf("data directory %s not usable: %v", *dataDir, err)
	}

	fc := &fakeCloud{dataDir: *dataDir, verbose: *verbose}

	http.HandleFunc("/", fc.handle)
	log.Printf("fake cloud listening on %s, serving documents from %s", *addr, *dataDir)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func (fc *fakeCloud) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	action := query.Get("action")
	if action == "" {
		fc.writeEnvelope(w, 1, "missing action", nil)
		return
	}

	if fc.verbose {
		log.Printf("%s %v", action, query)
	}

	// Writes have no canned document; acknowledge and echo the parameters.
	if action == "ctrlDevice" {
		log.Printf("control write: pn=%s id=%s val=%s",
			query.Get("pn"), query.Get("id"), query.Get("val"))
		fc.writeEnvelope(w, 0, "SUCCESS", map[string]string{
			"id":  query.Get("id"),
			"val": query.Get("val"),
		})
		return
	}

	path := filepath.Join(fc.dataDir, action+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("no canned document for %s: %v", action, err)
		fc.writeEnvelope(w, 12, "ERR_NO_DATA", nil)
		return
	}

	var dat interface{}
	if err := json.Unmarshal(raw, &dat); err != nil {
		log.Printf("canned document %s is not valid JSON: %v", path, err)
		fc.writeEnvelope(w, 1, "bad canned document", nil)
		return
	}

	fc.writeEnvelope(w, 0, "SUCCESS", dat)
}

// writeEnvelope wraps a payload in the vendor {err, desc, dat} envelope.
func (fc *fakeCloud) writeEnvelope(w http.ResponseWriter, errCode int, desc string, dat interface{}) {
	w.Header().Set("Content-Type", "application/json")
	envelope := map[string]interface{}{
		"err":  errCode,
		"desc": desc,
	}
	if dat != nil {
		envelope["dat"] = dat
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode envelope: %v\n", err)
	}
}
