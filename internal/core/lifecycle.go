package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// A module opts into each lifecycle step by implementing its interface.
// Loading runs Configure, Provision and Validate; App.Start and App.Stop
// run the rest.

// Configurable receives the module's block from the config file.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner builds clients, opens resources and registers services.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator checks the configured module. It must not have side effects.
type Validator interface {
	Validate() error
}

// Starter launches background work once every module is loaded.
type Starter interface {
	Start() error
}

// Stopper releases what the module holds. It is called for every started
// module, and for every loaded one when loading is abandoned.
type Stopper interface {
	Stop(ctx context.Context) error
}
