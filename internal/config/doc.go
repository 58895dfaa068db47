// Package config loads vbridge configuration.
//
// Settings live in vbridge.json next to the scripts being run. Any field can
// be overridden from the environment with the VBRIDGE_ prefix, for example
// VBRIDGE_LOG_LEVEL=debug or VBRIDGE_SERVE_ADDR=:9090.
//
// # Configuration File Structure
//
//	{
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "session": {
//	    "keyPrefix": "elem_"
//	  },
//	  "markup": {
//	    "sanitize": "ugc"
//	  },
//	  "metrics": {
//	    "namespace": "vbridge"
//	  },
//	  "serve": {
//	    "addr": ":8080"
//	  },
//	  "remote": {
//	    "queryTimeout": "5s"
//	  },
//	  "output": "s3://renders/page.html"
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Serve.Addr)
package config
