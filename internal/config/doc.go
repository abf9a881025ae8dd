// Package config provides configuration parsing for the statesync host.
//
// The configuration is stored in statesync.json. Values from .env files and
// STATESYNC_* environment variables override the file.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 8080,
//	    "allowedOrigins": ["https://tools.example.com"]
//	  },
//	  "store": {
//	    "backend": "sql",
//	    "sql": {"driver": "sqlite3", "dsn": "file:state.db"}
//	  },
//	  "metrics": {"enabled": true},
//	  "log": {"level": "debug", "format": "json"},
//	  "consumers": [
//	    {
//	      "name": "thread",
//	      "namespace": "thread",
//	      "storageKey": "calc-thread",
//	      "template": {"diameter": 10, "pitch": 1.5, "metric": true}
//	    }
//	  ]
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
