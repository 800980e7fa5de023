// Package config provides configuration management for the chat relay.
//
// Configuration is loaded from an optional YAML file, a .env file and the
// process environment, in that order of increasing precedence, on top of
// the defaults in defaults.go. The result is validated and all field
// errors are reported together.
//
// # Configuration Loading
//
//	_ = config.LoadDotEnv()                               // .env, missing file ignored
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// An empty path skips the file and starts from Default().
//
// # Environment Variables
//
// The upstream and retry settings use the names existing deployments set:
//
//   - SHAREAI_API_KEY overrides upstream.api_key
//   - SHAREAI_BASE_URL overrides upstream.base_url
//   - OPENAI_MODEL overrides upstream.model
//   - MAX_RETRIES overrides agent.max_retries
//   - RETRY_DELAY overrides agent.retry_delay (seconds, e.g. "1.5")
//
// Everything else uses CHATRELAY_SECTION_FIELD, for example
// CHATRELAY_LISTEN_ADDRESS, CHATRELAY_LOG_LEVEL or CHATRELAY_TASKS_BACKEND.
//
// # Singleton Pattern
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and calls
// ReloadConfig after a debounce interval. Handlers that read GetConfig per
// request pick up new retry defaults without a restart.
package config
