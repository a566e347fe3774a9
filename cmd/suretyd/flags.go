// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/luxfi/ids"
)

const (
	HTTPAddrKey         = "http-addr"
	DBDirKey            = "db-dir"
	ConfigFileKey       = "config-file"
	OwnerKey            = "owner"
	FirstAirlineKey     = "first-airline"
	FirstAirlineNameKey = "first-airline-name"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPAddrKey, ":8980", "Address the API server listens on")
	flags.String(DBDirKey, "", "Directory for the database; empty runs in-memory")
	flags.String(ConfigFileKey, "", "Path to a JSON config overriding the defaults")
	flags.String(OwnerKey, "", "Address of the contract owner (required)")
	flags.String(FirstAirlineKey, "", "Address of the founding airline (required)")
	flags.String(FirstAirlineNameKey, "First Airline", "Name of the founding airline")
}

type Config struct {
	HTTPAddr         string
	DBDir            string
	ConfigBytes      []byte
	Owner            ids.ShortID
	FirstAirline     ids.ShortID
	FirstAirlineName string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	httpAddr, err := flags.GetString(HTTPAddrKey)
	if err != nil {
		return nil, err
	}

	dbDir, err := flags.GetString(DBDirKey)
	if err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configFile != "" {
		configBytes, err = os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
	}

	ownerStr, err := flags.GetString(OwnerKey)
	if err != nil {
		return nil, err
	}
	owner, err := ids.ShortFromString(ownerStr)
	if err != nil {
		return nil, err
	}

	firstAirlineStr, err := flags.GetString(FirstAirlineKey)
	if err != nil {
		return nil, err
	}
	firstAirline, err := ids.ShortFromString(firstAirlineStr)
	if err != nil {
		return nil, err
	}

	firstAirlineName, err := flags.GetString(FirstAirlineNameKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPAddr:         httpAddr,
		DBDir:            dbDir,
		ConfigBytes:      configBytes,
		Owner:            owner,
		FirstAirline:     firstAirline,
		FirstAirlineName: firstAirlineName,
	}, nil
}
