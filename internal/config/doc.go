// Package config provides configuration management for steward.
//
// Configuration is loaded from a single directory. The default directory is
// ~/.config/steward, but commands accept a custom directory through the
// --config-path flag.
//
// # Configuration Directory
//
// The directory contains:
//   - config.yaml (main configuration file)
//   - resources.yaml (managed resources, unless paths.resourcesFile points elsewhere)
//   - scripts/ and templates/ (deployment inputs, by default)
//
// A missing config.yaml is not an error: the defaults are used.
//
// # Loading Order
//
// Defaults are applied first, config.yaml is decoded over them, relative
// local paths are resolved against the configuration directory and the
// result is validated. Unknown keys in config.yaml are rejected.
//
// # Sections
//
//	ssh:      user, password, privateKeyFile, knownHostsFile, port,
//	          timeoutSeconds, dialTimeoutSeconds
//	paths:    remoteScriptsDir, localScriptsDir, templateDir, stagingDir,
//	          resourcesFile, unitDir
//	bus:      enabled, natsURL, subjectPrefix, name
//	deploy:   deployScript, invokeScript, archiveTemplates, resourceFiles
//	metrics:  enabled, address, path
//	control:  stopTimeoutSeconds, waitTimeoutSeconds
//	history:  file
//
// The SSH password may also be supplied through the STEWARD_SSH_PASSWORD
// environment variable, which is only consulted when ssh.password is empty.
//
// # Example
//
//	ssh:
//	  user: deploy
//	  privateKeyFile: ~/.ssh/id_ed25519
//	  knownHostsFile: ~/.ssh/known_hosts
//	paths:
//	  remoteScriptsDir: /opt/steward/scripts
//	bus:
//	  enabled: true
//	  natsURL: nats://nats.internal:4222
//	deploy:
//	  archiveTemplates:
//	    - template: jvm/server.xml.tmpl
//	      path: conf/server.xml
//	      kinds: [jvm]
package config
