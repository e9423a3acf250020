package config

import "os"

const (
	// DefaultSSHPort is the port used when ssh.port is not set.
	DefaultSSHPort = 22

	// DefaultRemoteScriptsDir is relative to the remote user's home.
	DefaultRemoteScriptsDir = ".steward/scripts"

	DefaultSubjectPrefix = "steward"
	DefaultMetricsPath   = "/metrics"
)

// GetDefaultConfig returns the default configuration for steward.
func GetDefaultConfig() StewardConfig {
	return StewardConfig{
		SSH: SSHConfig{
			User:               os.Getenv("USER"),
			Port:               DefaultSSHPort,
			DialTimeoutSeconds: 30,
		},
		Paths: PathsConfig{
			RemoteScriptsDir: DefaultRemoteScriptsDir,
			LocalScriptsDir:  "scripts",
			TemplateDir:      "templates",
			StagingDir:       "staging",
			ResourcesFile:    "resources.yaml",
			UnitDir:          "/etc/systemd/system",
		},
		Bus: BusConfig{
			NATSURL:       "nats://127.0.0.1:4222",
			SubjectPrefix: DefaultSubjectPrefix,
		},
		Deploy: DeployConfig{
			DeployScript: "deploy-config-archive.sh",
			InvokeScript: "invoke-service.sh",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "127.0.0.1:9464",
			Path:    DefaultMetricsPath,
		},
		Control: ControlConfig{
			StopTimeoutSeconds: 60,
			WaitTimeoutSeconds: 120,
		},
	}
}
