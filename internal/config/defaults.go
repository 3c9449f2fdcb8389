package config

const (
	defaultDataDir         = "~/.local/share/bootforge/data"
	defaultLogDir          = "~/.local/share/bootforge/logs"
	defaultAPIBind         = "127.0.0.1:7587"
	defaultManifestName    = "appboot.json"
	defaultOutputLabel     = "app"
	defaultBuildTimeout    = 600
	defaultDownloadTimeout = 60
	defaultDecryptTimeout  = 120
	defaultCloudURL        = "https://raw.githubusercontent.com/pkweitai/loopdb/main/data/js/app.zip.enc"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"

	// defaultPassphrase is the documented weak fallback used when a build
	// or preview request carries no passphrase. Deployments with real
	// secrets must override bundle.default_passphrase.
	defaultPassphrase = "bootforge-dev"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Bundle: Bundle{
			ManifestName:      defaultManifestName,
			OutputLabel:       defaultOutputLabel,
			DefaultPassphrase: defaultPassphrase,
			BuildTimeout:      defaultBuildTimeout,
		},
		Preview: Preview{
			DefaultURL:      defaultCloudURL,
			DownloadTimeout: defaultDownloadTimeout,
			DecryptTimeout:  defaultDecryptTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
