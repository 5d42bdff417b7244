// Command schema-generator writes the JSON schema for linkwatch.yml.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/logging"
)

func main() {
	out := flag.String("o", "linkwatch.schema.json", "output file")
	flag.Parse()

	log := logging.NewLogger("schema-generator")

	data, err := config.GenerateSchema()
	if err != nil {
		log.WithError(err).Fatal("Error generating schema")
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.WithError(err).Fatal("Error creating schema directory")
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		log.WithError(err).Fatal("Error writing schema file")
	}
	log.Infof("Generated schema at %s", *out)
}
