package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

type config struct {
	ApplicationId string
	LogLevel      string
	Backend       struct {
		Name string
		Dir  string
		URI  string
	}
	Window struct {
		Size time.Duration
		Min  int
	}
	Kafka struct {
		Brokers []string
		Input   string
		Output  string
	}
	Http struct {
		Metrics string
		Store   string
	}
	Async bool
}

// loadConfig merges the yaml files named by --config with the command line
// flags. Flags win.
func loadConfig(args []string) (*config, error) {
	ko := koanf.New(`.`)

	f := flag.NewFlagSet(`estream-demo`, flag.ContinueOnError)
	f.StringSlice(`config`, nil, `path to one or more yaml config files (merged in order)`)
	f.String(`app.id`, `estream-demo`, `application id`)
	f.String(`log.level`, `INFO`, `log level`)
	f.String(`backend.name`, `memory`, `state backend: memory, bolt, pebble, badger or mongo`)
	f.String(`backend.dir`, `data`, `directory of the file based backends`)
	f.String(`backend.uri`, `mongodb://localhost:27017`, `mongo connection uri`)
	f.Duration(`window.size`, 10*time.Second, `tumbling window size`)
	f.Int(`window.min`, 0, `drop values below this before summing`)
	f.StringSlice(`kafka.brokers`, nil, `kafka brokers, reads stdin when empty`)
	f.String(`kafka.input`, `estream-demo-input`, `input topic`)
	f.String(`kafka.output`, ``, `output topic, results are only logged when empty`)
	f.String(`http.metrics`, `:9100`, `prometheus endpoint address`)
	f.String(`http.store`, ``, `store query endpoint address, disabled when empty`)
	f.Bool(`async`, false, `process source records on a worker pool`)

	if err := f.Parse(args); err != nil {
		return nil, err
	}

	files, _ := f.GetStringSlice(`config`)
	for _, path := range files {
		if !strings.HasSuffix(path, `.yaml`) && !strings.HasSuffix(path, `.yml`) {
			return nil, fmt.Errorf(`unsupported config file %s`, path)
		}

		if err := ko.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf(`error reading config %s: %w`, path, err)
		}
	}

	if err := ko.Load(posflag.Provider(f, `.`, ko), nil); err != nil {
		return nil, fmt.Errorf(`error reading flags: %w`, err)
	}

	c := new(config)
	c.ApplicationId = ko.String(`app.id`)
	c.LogLevel = ko.String(`log.level`)
	c.Backend.Name = ko.String(`backend.name`)
	c.Backend.Dir = ko.String(`backend.dir`)
	c.Backend.URI = ko.String(`backend.uri`)
	c.Window.Size = ko.Duration(`window.size`)
	c.Window.Min = ko.Int(`window.min`)
	c.Kafka.Brokers = ko.Strings(`kafka.brokers`)
	c.Kafka.Input = ko.String(`kafka.input`)
	c.Kafka.Output = ko.String(`kafka.output`)
	c.Http.Metrics = ko.String(`http.metrics`)
	c.Http.Store = ko.String(`http.store`)
	c.Async = ko.Bool(`async`)

	return c, nil
}

func mustLoadConfig() *config {
	c, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	return c
}
