package main

import (
	"log"

	"github.com/tracklib/tracklib/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ tracklib failed to start: %v", err)
	}
}
