package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int    `yaml:"port"`
	Origin string `yaml:"origin"`
	// public origin identity, defaults to origin
	PublicOrigin string `yaml:"publicOrigin"`
	// cache generation this build serves, e.g. "app-v3"
	Generation string `yaml:"generation"`
	// strategy family: network-first or cache-first
	Mode string `yaml:"mode"`
	// paths cached verbatim at install time
	Assets          []string `yaml:"assets"`
	OfflinePath     string   `yaml:"offlinePath"`
	ShellPath       string   `yaml:"shellPath"`
	SensitivePrefix string   `yaml:"sensitivePrefix"`
	// sqlite, memory or leveldb
	Provider string `yaml:"provider"`
	DBPath   string `yaml:"dbPath"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
