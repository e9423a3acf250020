package config

// StewardConfig is the top-level configuration structure for steward.
type StewardConfig struct {
	SSH     SSHConfig     `yaml:"ssh"`
	Paths   PathsConfig   `yaml:"paths"`
	Bus     BusConfig     `yaml:"bus"`
	Deploy  DeployConfig  `yaml:"deploy"`
	Metrics MetricsConfig `yaml:"metrics"`
	Control ControlConfig `yaml:"control"`
	History HistoryConfig `yaml:"history"`
}

// SSHConfig defines how steward reaches managed hosts.
type SSHConfig struct {
	User               string `yaml:"user,omitempty"`
	Password           string `yaml:"password,omitempty"`
	PrivateKeyFile     string `yaml:"privateKeyFile,omitempty"`
	KnownHostsFile     string `yaml:"knownHostsFile,omitempty"`
	Port               int    `yaml:"port,omitempty"`               // default: 22
	TimeoutSeconds     int    `yaml:"timeoutSeconds,omitempty"`     // per command; 0 disables
	DialTimeoutSeconds int    `yaml:"dialTimeoutSeconds,omitempty"` // default: 30
}

// PathsConfig locates local deployment inputs and remote directories.
type PathsConfig struct {
	RemoteScriptsDir string `yaml:"remoteScriptsDir,omitempty"`
	LocalScriptsDir  string `yaml:"localScriptsDir,omitempty"`
	TemplateDir      string `yaml:"templateDir,omitempty"`
	StagingDir       string `yaml:"stagingDir,omitempty"`
	ResourcesFile    string `yaml:"resourcesFile,omitempty"`
	UnitDir          string `yaml:"unitDir,omitempty"` // systemd unit directory on Linux hosts
}

// BusConfig defines cluster-wide state distribution.
type BusConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"` // false keeps state changes in-process
	NATSURL       string `yaml:"natsURL,omitempty"`
	SubjectPrefix string `yaml:"subjectPrefix,omitempty"`
	Name          string `yaml:"name,omitempty"` // connection name, defaults to the host name
}

// FileTemplate binds a template to the path its output is written to.
type FileTemplate struct {
	Template string   `yaml:"template"`
	Path     string   `yaml:"path"`
	Kinds    []string `yaml:"kinds,omitempty"`
}

// DeployConfig defines what a deployment renders and ships.
type DeployConfig struct {
	DeployScript     string         `yaml:"deployScript,omitempty"`
	InvokeScript     string         `yaml:"invokeScript,omitempty"`
	ArchiveTemplates []FileTemplate `yaml:"archiveTemplates,omitempty"`
	ResourceFiles    []FileTemplate `yaml:"resourceFiles,omitempty"`
}

// MetricsConfig defines the Prometheus endpoint served by "steward serve".
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Address string `yaml:"address,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// ControlConfig tunes control operations.
type ControlConfig struct {
	StopTimeoutSeconds int `yaml:"stopTimeoutSeconds,omitempty"`
	WaitTimeoutSeconds int `yaml:"waitTimeoutSeconds,omitempty"`
}

// HistoryConfig defines where history events are kept in addition to the
// audit log.
type HistoryConfig struct {
	File string `yaml:"file,omitempty"`
}
