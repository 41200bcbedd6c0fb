package mongo

import (
	// Standard Library Imports
	"testing"

	// External Imports
	"github.com/ory/fosite"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

func TestClientMongoManagerImplementsConfigure(t *testing.T) {
	c := &ClientManager{}

	var i interface{} = c
	if _, ok := i.(oidc.Configure); !ok {
		t.Error("ClientManager does not implement interface oidc.Configure")
	}
}

func TestClientMongoManagerImplementsClientStore(t *testing.T) {
	c := &ClientManager{}

	var i interface{} = c
	if _, ok := i.(oidc.ClientStore); !ok {
		t.Error("ClientManager does not implement interface oidc.ClientStore")
	}
}

func TestClientMongoManagerImplementsClientManager(t *testing.T) {
	c := &ClientManager{}

	var i interface{} = c
	if _, ok := i.(oidc.ClientManager); !ok {
		t.Error("ClientManager does not implement interface oidc.ClientManager")
	}
}

func TestClientMongoManagerImplementsFositeClientManager(t *testing.T) {
	c := &ClientManager{}

	var i interface{} = c
	if _, ok := i.(fosite.ClientManager); !ok {
		t.Error("ClientManager does not implement interface fosite.ClientManager")
	}
}
