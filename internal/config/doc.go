// Package config defines configuration structures for the fetchq CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (FETCHQ_ prefix)
//   - YAML configuration file
//
// Defaults come from the `default` struct tags and are applied with
// github.com/creasty/defaults after the file is decoded.
//
// # Example
//
//	download_dir: /srv/mirror
//	max_parallel: 3
//	chunk_size: 4MiB
//	records_url: s3://fetchq-records?region=eu-west-1
//	retry:
//	  attempts: 5
//	  backoff: 1s
//	  max_backoff: 30s
//	log:
//	  level: debug
//	  format: json
//	tasks:
//	  - url: https://example.com/images/disk.iso
//	  - url: https://example.com/data.csv
//	    directory: /srv/mirror/csv
//	    file_name: latest.csv
package config
