/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/acronis/go-appkit/config"
)

func Example() {
	reg := MustNew(map[string]ServiceConfig{
		"billing": NewServiceConfig(8, Rate{Count: 100, Interval: time.Second}),
	})

	err := reg.Do(context.Background(), "billing", func(ctx context.Context) error {
		fmt.Println("charging the customer")
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Calls to services that were never configured fail right away.
	if _, err := reg.Lookup("biling"); err != nil {
		fmt.Println(err)
	}

	// Output:
	// charging the customer
	// service "biling" is not configured
}

func ExampleDoWithResult() {
	reg := MustNew(map[string]ServiceConfig{
		"search": NewServiceConfig(2, Rate{Count: 50, Interval: time.Second}),
	})

	docs, err := DoWithResult(context.Background(), reg, "search", func(ctx context.Context) ([]string, error) {
		return []string{"doc-1", "doc-2"}, nil
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(strings.Join(docs, ", "))

	// Output:
	// doc-1, doc-2
}

func ExampleNewFromConfig() {
	cfgData := `
services:
  billing:
    concurrency: 8
    rate: 100/s
    retries: 2
backoff:
  strategy: constant
  constantInterval: 50ms
`
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		strings.NewReader(cfgData), config.DataTypeYAML, cfg)
	if err != nil {
		log.Fatal(err)
	}

	reg, err := NewFromConfig(cfg, Opts{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reg.Services())

	// Output:
	// [billing]
}
