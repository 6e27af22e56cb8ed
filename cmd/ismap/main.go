package main

import (
	"log"

	"github.com/liserjrqlxue/version"
)

func main() {
	version.LogVersion()
	if err := NewRootCmd().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
