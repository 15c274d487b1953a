package config

// Backend is the platform-native store for persisted settings (the
// `budtender config` command family). macOS keeps them in UserDefaults via
// the `defaults` CLI; other platforms use an XDG config file. Environment
// overrides (BUDTENDER_*) and .env values layer on top at load time and
// never touch the backend.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
