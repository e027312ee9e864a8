package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/db"
	"consulta_ciudadana_go/services"
)

func main() {
	path := flag.String("file", "", "path to the geography workbook (.xlsx)")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-geography -file geografia.xlsx")
		os.Exit(2)
	}

	cfg := config.Load()

	database, err := db.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(database)

	if err := db.AutoMigrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := services.SeedReferenceData(database); err != nil {
		log.Fatalf("Failed to seed reference data: %v", err)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *path, err)
	}
	defer f.Close()

	result, err := services.ImportGeographyWorkbook(database, f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Municipios: %d\n", result.Municipalities)
	fmt.Printf("Localidades: %d\n", result.Localities)
	for _, rowErr := range result.Errors {
		fmt.Printf("  - %s\n", rowErr)
	}
}
