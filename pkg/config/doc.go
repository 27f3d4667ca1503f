// Package config defines the environment-driven service configuration,
// read with cleanenv. Every setting has a development default; production
// deployments override the secrets at minimum.
package config
