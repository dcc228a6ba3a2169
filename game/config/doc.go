// Package config loads simulation profiles for the broadcast server.
//
// A profile is a JSON file in the config directory named <id>.json. Fields a
// file leaves out keep the built-in values of engine.DefaultSimConfig, so a
// profile only needs to list what it changes:
//
//	{"name": "boy", "variant": "boy", "palette": ["red", "green", "blue"]}
//
// The "default" profile always exists. If configs/default.json is absent the
// built-in profile is used.
//
// Usage:
//
//	manager := config.NewManager("configs")
//	cfg, err := manager.LoadProfile("boy")
//	profiles, err := manager.ListProfiles()
package config
