// Package main is the entry point for the SeekSense search service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/seeksense/cmd/seeksense/app"
)

func main() {
	app.NewApp().Run()
}
