// Package config provides configuration management for savekeep.
//
// Configuration is read by Viper from config.yaml in $SAVEKEEP_CONFIG_DIR,
// the current directory or ~/.config/savekeep, in that order. Every key can
// be overridden by a SAVEKEEP_ environment variable (serve.addr becomes
// SAVEKEEP_SERVE_ADDR).
//
//	version: 1
//	store_dir: ~/.local/share/savekeep
//	retention: 10          # newest snapshots protected from removal; 0 disables
//	path_case: sensitive   # or insensitive
//	pre_restore_backup: true
//	operation_timeout: 0s
//	journal: true
//	concurrency: 4
//	serve:
//	  addr: 127.0.0.1:7474
//
// # Loading Configuration
//
// Call [Init] once, then [Load]. A missing file is fine when no explicit
// path is given; defaults apply. Loaded configurations are validated and
// failures are marked with errors.ErrInvalidConfig:
//
//	config.Init()
//	cfg, err := config.Load("")
//
// [Set] changes one key and writes the file back atomically.
package config
