// Package config loads runtime configuration for the gophcal CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config/-c or GOPHCAL_CONFIG.
//  3. Environment variables prefixed with GOPHCAL_, including those from a
//     .env file in the working directory.
//  4. Command-line flags that were set explicitly.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "data_dir": "/home/me/.gophcal",
//	  "device_name": "laptop",
//	  "sync_interval": "1m",
//	  "remote": {
//	    "kind": "s3",
//	    "s3": {"bucket": "calendars", "endpoint": "http://127.0.0.1:9000", "use_path_style": true}
//	  }
//	}
package config
