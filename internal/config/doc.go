// Package config provides configuration parsing for the marketplace service.
//
// The configuration is stored in marketplace.json. This package handles
// loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "storage": {
//	    "backend": "redis",
//	    "key": "@GoMarketplace:products",
//	    "writeTimeout": "5s",
//	    "redisUrl": "redis://localhost:6379/0",
//	    "redisPrefix": "gomarketplace:"
//	  },
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 8080
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "json"
//	  }
//	}
//
// Backends and the fields they read:
//
//	memory  (none)
//	file    dir
//	redis   redisUrl, redisPrefix, redisTtl
//	sql     dsn, driver, dialect, table
//	s3      bucket, prefix, region, endpoint
//
// # Usage
//
//	cfg, err := config.LoadOptional("marketplace.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
